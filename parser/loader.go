package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfrename/filters"
	"github.com/wudi/pdfrename/ir/raw"
	"github.com/wudi/pdfrename/recovery"
	"github.com/wudi/pdfrename/scanner"
	"github.com/wudi/pdfrename/security"
	"github.com/wudi/pdfrename/xref"
)

// maxRefDepth bounds chains of indirect references (a Length that points at
// a Ref that points at a Ref, and so on).
const maxRefDepth = 32

// Loader materializes indirect objects on demand: direct objects from their
// byte offset, compressed objects from their object stream. Loaded objects
// are cached for the lifetime of the document, and string/stream payloads
// come back already decrypted.
type Loader struct {
	reader   io.ReaderAt
	table    xref.Table
	handler  security.Handler
	rec      recovery.Strategy
	pipeline *filters.Pipeline

	cache  map[raw.ObjectRef]raw.Object
	objstm map[int]map[int]raw.Object
}

func NewLoader(r io.ReaderAt, table xref.Table, handler security.Handler, rec recovery.Strategy) *Loader {
	if handler == nil {
		handler = security.NoopHandler()
	}
	return &Loader{
		reader:   r,
		table:    table,
		handler:  handler,
		rec:      rec,
		pipeline: filters.DefaultPipeline(),
		cache:    make(map[raw.ObjectRef]raw.Object),
		objstm:   make(map[int]map[int]raw.Object),
	}
}

// Load returns the object ref points at. Objects the xref does not know are
// reported as an error, not as null; callers that tolerate absence resolve
// through Deref instead.
func (l *Loader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := l.cache[ref]; ok {
		return obj, nil
	}
	obj, err := l.loadOnce(ctx, ref)
	if err != nil {
		return nil, err
	}
	l.cache[ref] = obj
	return obj, nil
}

// Deref resolves obj if it is an indirect reference, following chains up to
// maxRefDepth. Unresolvable references collapse to null.
func (l *Loader) Deref(ctx context.Context, obj raw.Object) raw.Object {
	for depth := 0; depth < maxRefDepth; depth++ {
		ref, ok := obj.(raw.Reference)
		if !ok {
			return obj
		}
		loaded, err := l.Load(ctx, ref.Ref())
		if err != nil {
			return raw.NullObj{}
		}
		obj = loaded
	}
	return raw.NullObj{}
}

// DerefDict resolves obj to a dictionary, or nil.
func (l *Loader) DerefDict(ctx context.Context, obj raw.Object) raw.Dictionary {
	d, _ := l.Deref(ctx, obj).(raw.Dictionary)
	return d
}

// DecodeStream runs a loaded stream's payload through its filter chain.
// The payload is already decrypted; only Filter/DecodeParms remain.
func (l *Loader) DecodeStream(ctx context.Context, st raw.Stream) ([]byte, error) {
	names, parms := filters.ExtractFilters(st.Dictionary())
	if len(names) == 0 {
		return st.RawData(), nil
	}
	return l.pipeline.Decode(ctx, st.RawData(), names, parms)
}

func (l *Loader) loadOnce(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if l.table == nil {
		return nil, errors.New("no xref table")
	}
	if offset, gen, ok := l.table.Lookup(ref.Num); ok {
		return l.loadAtOffset(ctx, ref.Num, gen, offset)
	}
	if stmNum, idx, ok := l.table.ObjStream(ref.Num); ok {
		return l.loadFromObjectStream(ctx, ref, stmNum, idx)
	}
	return nil, fmt.Errorf("object %s not in xref", ref)
}

func (l *Loader) loadAtOffset(ctx context.Context, objNum, gen int, offset int64) (raw.Object, error) {
	s := scanner.New(l.reader, scanner.Config{Recovery: l.rec})
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	tr := raw.NewTokenReader(s)
	if err := expectObjHeader(tr, objNum); err != nil {
		return nil, err
	}
	obj, err := raw.ParseObject(tr)
	if err != nil {
		return nil, err
	}

	if dict, ok := obj.(raw.Dictionary); ok {
		length, lerr := l.streamLength(ctx, dict)
		if lerr == nil && length >= 0 {
			s.SetNextStreamLength(length)
		}
		tok, terr := tr.Next()
		switch {
		case terr == nil && tok.Type == scanner.TokenStream:
			obj = raw.NewStream(dict.(*raw.DictObj), tok.Bytes)
		case terr == nil:
			tr.Unread(tok)
		}
	}
	return l.decryptObject(raw.ObjectRef{Num: objNum, Gen: gen}, obj)
}

// streamLength resolves the Length entry, loading it when indirect. A
// missing Length yields -1 so the scanner falls back to searching for
// endstream.
func (l *Loader) streamLength(ctx context.Context, dict raw.Dictionary) (int64, error) {
	obj, ok := dict.Get(raw.NameObj{Val: "Length"})
	if !ok {
		return -1, nil
	}
	if ref, ok := obj.(raw.Reference); ok {
		loaded, err := l.Load(ctx, ref.Ref())
		if err != nil {
			return -1, err
		}
		obj = loaded
	}
	if n, ok := obj.(raw.Number); ok && n.Int() >= 0 {
		return n.Int(), nil
	}
	return -1, errors.New("stream Length is not a number")
}

// loadFromObjectStream decodes object stream stmNum once and serves every
// embedded object from the decoded image.
func (l *Loader) loadFromObjectStream(ctx context.Context, ref raw.ObjectRef, stmNum, idx int) (raw.Object, error) {
	objs, ok := l.objstm[stmNum]
	if !ok {
		var err error
		objs, err = l.decodeObjectStream(ctx, stmNum)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", stmNum, err)
		}
		l.objstm[stmNum] = objs
	}
	if obj, ok := objs[ref.Num]; ok {
		return obj, nil
	}
	_ = idx // index positions come from the pair header, not the xref hint
	return nil, fmt.Errorf("object %s not in object stream %d", ref, stmNum)
}

func (l *Loader) decodeObjectStream(ctx context.Context, stmNum int) (map[int]raw.Object, error) {
	offset, gen, ok := l.table.Lookup(stmNum)
	if !ok {
		return nil, errors.New("stream object missing from xref")
	}
	obj, err := l.loadAtOffset(ctx, stmNum, gen, offset)
	if err != nil {
		return nil, err
	}
	st, ok := obj.(raw.Stream)
	if !ok {
		return nil, errors.New("not a stream")
	}
	data, err := l.DecodeStream(ctx, st)
	if err != nil {
		return nil, err
	}

	dict := st.Dictionary()
	n := int(dictIntDefault(dict, "N", 0))
	first := int(dictIntDefault(dict, "First", 0))
	if n <= 0 || first < 0 || first > len(data) {
		return nil, errors.New("malformed object stream header")
	}

	// header: n pairs of "objnum offset"
	hs := scanner.New(bytes.NewReader(data[:first]), scanner.Config{Recovery: l.rec})
	pairs := make([]int64, 0, 2*n)
	for len(pairs) < 2*n {
		tok, err := hs.Next()
		if err != nil {
			return nil, fmt.Errorf("object stream pair header: %w", err)
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, errors.New("object stream pair header malformed")
		}
		pairs = append(pairs, tok.Int)
	}

	objs := make(map[int]raw.Object, n)
	body := data[first:]
	for i := 0; i < n; i++ {
		num := int(pairs[2*i])
		off := pairs[2*i+1]
		if off < 0 || off > int64(len(body)) {
			return nil, errors.New("object stream offset out of range")
		}
		bs := scanner.New(bytes.NewReader(body[off:]), scanner.Config{Recovery: l.rec})
		embedded, err := raw.ParseObject(raw.NewTokenReader(bs))
		if err != nil {
			return nil, fmt.Errorf("embedded object %d: %w", num, err)
		}
		objs[num] = embedded
	}
	return objs, nil
}

// decryptObject rewrites string and stream payloads in place. Objects from
// object streams are never decrypted; the stream itself already was.
func (l *Loader) decryptObject(ref raw.ObjectRef, obj raw.Object) (raw.Object, error) {
	if !l.handler.IsEncrypted() {
		return obj, nil
	}
	switch v := obj.(type) {
	case raw.StringObj:
		dec, err := l.handler.Decrypt(ref.Num, ref.Gen, v.Bytes, security.DataClassString)
		if err != nil {
			return nil, err
		}
		return raw.StringObj{Bytes: dec, Hex: v.Hex}, nil
	case *raw.StringObj:
		dec, err := l.handler.Decrypt(ref.Num, ref.Gen, v.Bytes, security.DataClassString)
		if err != nil {
			return nil, err
		}
		return &raw.StringObj{Bytes: dec, Hex: v.Hex}, nil
	case *raw.ArrayObj:
		for i, item := range v.Items {
			dec, err := l.decryptObject(ref, item)
			if err != nil {
				return nil, err
			}
			v.Items[i] = dec
		}
		return v, nil
	case *raw.DictObj:
		return l.decryptDict(ref, v)
	case *raw.StreamObj:
		dict, err := l.decryptDict(ref, v.Dict)
		if err != nil {
			return nil, err
		}
		class := security.DataClassStream
		if isMetadataStream(v.Dict) {
			class = security.DataClassMetadataStream
		}
		data, err := l.handler.DecryptWithFilter(ref.Num, ref.Gen, v.Data, class, cryptFilterName(v.Dict))
		if err != nil {
			return nil, err
		}
		return raw.NewStream(dict, data), nil
	default:
		return obj, nil
	}
}

func (l *Loader) decryptDict(ref raw.ObjectRef, d *raw.DictObj) (*raw.DictObj, error) {
	for k, item := range d.KV {
		dec, err := l.decryptObject(ref, item)
		if err != nil {
			return nil, err
		}
		d.KV[k] = dec
	}
	return d, nil
}

// cryptFilterName returns the name of an explicit Crypt filter entry, empty
// when the stream uses the document default.
func cryptFilterName(dict raw.Dictionary) string {
	names, parms := filters.ExtractFilters(dict)
	for i, name := range names {
		if name != "Crypt" {
			continue
		}
		if i < len(parms) && parms[i] != nil {
			if obj, ok := parms[i].Get(raw.NameObj{Val: "Name"}); ok {
				if n, ok := obj.(raw.Name); ok {
					return n.Value()
				}
			}
		}
	}
	return ""
}

func isMetadataStream(dict raw.Dictionary) bool {
	if obj, ok := dict.Get(raw.NameObj{Val: "Type"}); ok {
		if n, ok := obj.(raw.Name); ok {
			return n.Value() == "Metadata"
		}
	}
	return false
}

func expectObjHeader(tr *raw.TokenReader, wantNum int) error {
	num, err := tr.Next()
	if err != nil {
		return err
	}
	if num.Type != scanner.TokenNumber || !num.IsInt || int(num.Int) != wantNum {
		return fmt.Errorf("object header mismatch at offset %d: want %d", num.Pos, wantNum)
	}
	gen, err := tr.Next()
	if err != nil {
		return err
	}
	if gen.Type != scanner.TokenNumber || !gen.IsInt {
		return fmt.Errorf("expected generation number at offset %d", gen.Pos)
	}
	kw, err := tr.Next()
	if err != nil {
		return err
	}
	if kw.Type != scanner.TokenKeyword || kw.Str != "obj" {
		return fmt.Errorf("expected obj keyword at offset %d", kw.Pos)
	}
	return nil
}

func dictIntDefault(d raw.Dictionary, key string, def int64) int64 {
	if d == nil {
		return def
	}
	if obj, ok := d.Get(raw.NameObj{Val: key}); ok {
		if n, ok := obj.(raw.Number); ok {
			return n.Int()
		}
	}
	return def
}
