// Package extractor interprets a parsed document: the page tree, the Info
// dictionary, page text, and page images. It never writes anything.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/wudi/pdfrename/ir/raw"
	"github.com/wudi/pdfrename/parser"
)

// maxPageTreeDepth bounds Pages tree recursion; trees nest a handful of
// levels in practice.
const maxPageTreeDepth = 64

type Extractor struct {
	doc   *parser.Document
	pages []raw.Dictionary
	fonts map[raw.ObjectRef]*fontDecoder
}

func New(doc *parser.Document) *Extractor {
	return &Extractor{doc: doc, fonts: make(map[raw.ObjectRef]*fontDecoder)}
}

// Metadata carries the common Info dictionary fields, decoded to Go strings.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string
}

// Metadata reads the trailer Info dictionary. Documents without one yield a
// zero Metadata, not an error.
func (e *Extractor) Metadata(ctx context.Context) (Metadata, error) {
	info, err := e.doc.Info(ctx)
	if err != nil {
		return Metadata{}, err
	}
	if info == nil {
		return Metadata{}, nil
	}
	get := func(key string) string {
		obj, ok := info.Get(raw.NameObj{Val: key})
		if !ok {
			return ""
		}
		s, ok := e.doc.Deref(ctx, obj).(raw.String)
		if !ok {
			return ""
		}
		return DecodeTextString(s.Value())
	}
	return Metadata{
		Title:    get("Title"),
		Author:   get("Author"),
		Subject:  get("Subject"),
		Keywords: get("Keywords"),
		Creator:  get("Creator"),
		Producer: get("Producer"),
	}, nil
}

// PageCount walks the page tree on first use.
func (e *Extractor) PageCount(ctx context.Context) (int, error) {
	if err := e.loadPages(ctx); err != nil {
		return 0, err
	}
	return len(e.pages), nil
}

// Page returns the page dictionary at index, zero-based.
func (e *Extractor) Page(ctx context.Context, index int) (raw.Dictionary, error) {
	if err := e.loadPages(ctx); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(e.pages) {
		return nil, fmt.Errorf("page %d out of range (%d pages)", index, len(e.pages))
	}
	return e.pages[index], nil
}

func (e *Extractor) loadPages(ctx context.Context) error {
	if e.pages != nil {
		return nil
	}
	cat, err := e.doc.Catalog(ctx)
	if err != nil {
		return err
	}
	rootObj, ok := cat.Get(raw.NameObj{Val: "Pages"})
	if !ok {
		return errors.New("catalog has no Pages")
	}
	pages, err := e.walkPages(ctx, rootObj, 0)
	if err != nil {
		return err
	}
	e.pages = pages
	return nil
}

// walkPages flattens the Pages tree to leaf Page dictionaries, in tree
// order.
func (e *Extractor) walkPages(ctx context.Context, obj raw.Object, depth int) ([]raw.Dictionary, error) {
	if depth > maxPageTreeDepth {
		return nil, errors.New("page tree too deep")
	}
	node := e.doc.Loader().DerefDict(ctx, obj)
	if node == nil {
		return nil, nil
	}
	typ := ""
	if t, ok := node.Get(raw.NameObj{Val: "Type"}); ok {
		if n, ok := t.(raw.Name); ok {
			typ = n.Value()
		}
	}
	if typ == "Page" {
		return []raw.Dictionary{node}, nil
	}
	kidsObj, ok := node.Get(raw.NameObj{Val: "Kids"})
	if !ok {
		// some producers omit Type on leaf pages
		if _, hasContents := node.Get(raw.NameObj{Val: "Contents"}); hasContents {
			return []raw.Dictionary{node}, nil
		}
		return nil, nil
	}
	kids, ok := e.doc.Deref(ctx, kidsObj).(raw.Array)
	if !ok {
		return nil, nil
	}
	var out []raw.Dictionary
	for i := 0; i < kids.Len(); i++ {
		kid, _ := kids.Get(i)
		leaves, err := e.walkPages(ctx, kid, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, leaves...)
	}
	return out, nil
}

// DecodeTextString interprets a PDF text string: UTF-16 with a BOM, or
// (approximated as Latin-1) PDFDocEncoding otherwise.
func DecodeTextString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		return decodeUTF16BE(b[2:])
	}
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xFE {
		return decodeUTF16LE(b[2:])
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func decodeUTF16BE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16.Decode(u))
}

func decodeUTF16LE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = uint16(b[2*i+1])<<8 | uint16(b[2*i])
	}
	return string(utf16.Decode(u))
}
