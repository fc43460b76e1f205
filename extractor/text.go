package extractor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/wudi/pdfrename/ir/raw"
	"github.com/wudi/pdfrename/scanner"
)

// PageText extracts the text shown on one page by replaying its content
// stream show operators (Tj, ', ", TJ). Positioning operators that start a
// new line (Td/TD with a vertical move, T*, ', ") insert newlines, which is
// what line-oriented consumers key on.
func (e *Extractor) PageText(ctx context.Context, index int) (string, error) {
	page, err := e.Page(ctx, index)
	if err != nil {
		return "", err
	}
	blobs, err := e.contentStreams(ctx, page)
	if err != nil {
		return "", err
	}
	if len(blobs) == 0 {
		return "", nil
	}
	fonts := e.fontDecodersForPage(ctx, page)
	var out strings.Builder
	for _, data := range blobs {
		showText(&out, data, fonts)
	}
	return strings.TrimSpace(out.String()), nil
}

// contentStreams collects the decoded Contents payloads; Contents may be a
// single stream or an array of streams.
func (e *Extractor) contentStreams(ctx context.Context, page raw.Dictionary) ([][]byte, error) {
	obj, ok := page.Get(raw.NameObj{Val: "Contents"})
	if !ok {
		return nil, nil
	}
	var blobs [][]byte
	appendStream := func(o raw.Object) error {
		st, ok := e.doc.Deref(ctx, o).(raw.Stream)
		if !ok {
			return nil
		}
		data, err := e.doc.Loader().DecodeStream(ctx, st)
		if err != nil {
			return err
		}
		blobs = append(blobs, data)
		return nil
	}
	switch v := e.doc.Deref(ctx, obj).(type) {
	case raw.Stream:
		data, err := e.doc.Loader().DecodeStream(ctx, v)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, data)
	case raw.Array:
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			if err := appendStream(item); err != nil {
				return nil, err
			}
		}
	}
	return blobs, nil
}

// showText replays one content stream. Operands accumulate until an
// operator token consumes them; everything outside the show and positioning
// operators is ignored.
func showText(out *strings.Builder, data []byte, fonts map[string]*fontDecoder) {
	tr := raw.NewTokenReader(scanner.New(bytes.NewReader(data), scanner.Config{}))
	var operands []raw.Object
	currentFont := ""

	for {
		tok, err := tr.Next()
		if err != nil {
			break
		}
		if tok.Type == scanner.TokenInlineImage {
			operands = operands[:0]
			continue
		}
		if tok.Type == scanner.TokenKeyword {
			switch tok.Str {
			case "BT":
				if out.Len() > 0 {
					out.WriteByte('\n')
				}
			case "Tf":
				if len(operands) >= 2 {
					if name, ok := operands[len(operands)-2].(raw.Name); ok {
						currentFont = name.Value()
					}
				}
			case "Tj":
				appendShown(out, lastString(operands), fonts[currentFont], false)
			case "'", "\"":
				appendShown(out, lastString(operands), fonts[currentFont], true)
			case "TJ":
				appendShownArray(out, operands, fonts[currentFont])
			case "T*":
				if out.Len() > 0 {
					out.WriteByte('\n')
				}
			case "Td", "TD":
				if len(operands) >= 2 {
					if dy, ok := operands[len(operands)-1].(raw.Number); ok && dy.Float() != 0 {
						if out.Len() > 0 {
							out.WriteByte('\n')
						}
					}
				}
			}
			operands = operands[:0]
			continue
		}
		tr.Unread(tok)
		operand, err := raw.ParseObject(tr)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			break
		}
		operands = append(operands, operand)
	}
}

func lastString(operands []raw.Object) []byte {
	if len(operands) == 0 {
		return nil
	}
	if s, ok := operands[len(operands)-1].(raw.String); ok {
		return s.Value()
	}
	return nil
}

func appendShown(out *strings.Builder, data []byte, font *fontDecoder, newline bool) {
	if len(data) == 0 {
		return
	}
	text := decodeShownBytes(data, font)
	if text == "" {
		return
	}
	if newline && out.Len() > 0 {
		out.WriteByte('\n')
	}
	out.WriteString(text)
}

func appendShownArray(out *strings.Builder, operands []raw.Object, font *fontDecoder) {
	if len(operands) == 0 {
		return
	}
	arr, ok := operands[len(operands)-1].(raw.Array)
	if !ok {
		return
	}
	var line strings.Builder
	for i := 0; i < arr.Len(); i++ {
		item, _ := arr.Get(i)
		if s, ok := item.(raw.String); ok {
			line.WriteString(decodeShownBytes(s.Value(), font))
		}
	}
	out.WriteString(line.String())
}

// decodeShownBytes maps shown string bytes to text: through the font's
// ToUnicode CMap when one exists, by BOM sniffing otherwise.
func decodeShownBytes(data []byte, font *fontDecoder) string {
	if font != nil && font.cmap != nil {
		return font.cmap.decode(data)
	}
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		return decodeUTF16BE(data[2:])
	}
	return string(data)
}

type fontDecoder struct {
	cmap *toUnicodeMap
}

// fontDecodersForPage builds one decoder per font resource name on the
// page. Failures leave that font undecoded; shown bytes then pass through
// verbatim.
func (e *Extractor) fontDecodersForPage(ctx context.Context, page raw.Dictionary) map[string]*fontDecoder {
	res := e.doc.Loader().DerefDict(ctx, dictGet(page, "Resources"))
	if res == nil {
		return nil
	}
	fontsDict := e.doc.Loader().DerefDict(ctx, dictGet(res, "Font"))
	if fontsDict == nil {
		return nil
	}
	decoders := make(map[string]*fontDecoder)
	for _, key := range fontsDict.Keys() {
		obj, _ := fontsDict.Get(key)
		if dec := e.fontDecoder(ctx, obj); dec != nil {
			decoders[key.Value()] = dec
		}
	}
	return decoders
}

func (e *Extractor) fontDecoder(ctx context.Context, obj raw.Object) *fontDecoder {
	if ref, ok := obj.(raw.Reference); ok {
		if cached, ok := e.fonts[ref.Ref()]; ok {
			return cached
		}
		dec := e.parseFontDecoder(ctx, obj)
		e.fonts[ref.Ref()] = dec
		return dec
	}
	return e.parseFontDecoder(ctx, obj)
}

func (e *Extractor) parseFontDecoder(ctx context.Context, obj raw.Object) *fontDecoder {
	dict := e.doc.Loader().DerefDict(ctx, obj)
	if dict == nil {
		return nil
	}
	dec := &fontDecoder{}
	if tuObj, ok := dict.Get(raw.NameObj{Val: "ToUnicode"}); ok {
		if st, ok := e.doc.Deref(ctx, tuObj).(raw.Stream); ok {
			if data, err := e.doc.Loader().DecodeStream(ctx, st); err == nil && len(data) > 0 {
				dec.cmap = parseToUnicodeCMap(data)
			}
		}
	}
	return dec
}

func dictGet(d raw.Dictionary, key string) raw.Object {
	if d == nil {
		return nil
	}
	if obj, ok := d.Get(raw.NameObj{Val: key}); ok {
		return obj
	}
	return nil
}

type toUnicodeMap struct {
	entries map[string]string
	lengths []int
}

// maxCMapEntries bounds the expanded mapping. Real fonts stay within the
// 16-bit CID space; a hostile bfrange must not expand past it.
const maxCMapEntries = 1 << 16

// parseToUnicodeCMap reads the bfchar/bfrange sections of a ToUnicode CMap.
// The line-oriented scan tolerates the loose formatting real producers
// emit.
func parseToUnicodeCMap(data []byte) *toUnicodeMap {
	sc := bufio.NewScanner(bytes.NewReader(data))
	result := &toUnicodeMap{entries: make(map[string]string)}
	lengthSet := make(map[int]struct{})
	state := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		switch {
		case strings.HasSuffix(line, "begincodespacerange"):
			state = "codespace"
			continue
		case strings.HasSuffix(line, "endcodespacerange"),
			strings.HasSuffix(line, "endbfchar"),
			strings.HasSuffix(line, "endbfrange"):
			state = ""
			continue
		case strings.HasSuffix(line, "beginbfchar"):
			state = "bfchar"
			continue
		case strings.HasSuffix(line, "beginbfrange"):
			state = "bfrange"
			continue
		}
		switch state {
		case "codespace":
			if hexes := hexTokens(line); len(hexes) >= 1 {
				if b := hexToBytes(hexes[0]); len(b) > 0 {
					lengthSet[len(b)] = struct{}{}
				}
			}
		case "bfchar":
			hexes := hexTokens(line)
			if len(hexes) >= 2 {
				src := hexToBytes(hexes[0])
				if len(src) > 0 {
					result.entries[string(src)] = decodeUTF16BE(hexToBytes(hexes[1]))
					lengthSet[len(src)] = struct{}{}
				}
			}
		case "bfrange":
			line = accumulateBracket(line, sc)
			hexes := hexTokens(line)
			if len(hexes) < 3 {
				continue
			}
			srcStart := hexToBytes(hexes[0])
			srcEnd := hexToBytes(hexes[1])
			length := len(srcStart)
			lengthSet[length] = struct{}{}
			startVal := bytesToInt(srcStart)
			endVal := bytesToInt(srcEnd)
			if strings.Contains(line, "[") {
				for i := 0; i <= endVal-startVal && 2+i < len(hexes); i++ {
					if len(result.entries) >= maxCMapEntries {
						break
					}
					src := intToBytes(startVal+i, length)
					result.entries[string(src)] = decodeUTF16BE(hexToBytes(hexes[2+i]))
				}
			} else {
				dstStart := hexToBytes(hexes[2])
				dstVal := bytesToInt(dstStart)
				dstLen := len(dstStart)
				for i := 0; i <= endVal-startVal; i++ {
					if len(result.entries) >= maxCMapEntries {
						break
					}
					src := intToBytes(startVal+i, length)
					result.entries[string(src)] = decodeUTF16BE(intToBytes(dstVal+i, dstLen))
				}
			}
		}
	}
	if len(lengthSet) == 0 {
		for k := range result.entries {
			lengthSet[len(k)] = struct{}{}
		}
	}
	for l := range lengthSet {
		result.lengths = append(result.lengths, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(result.lengths)))
	return result
}

// accumulateBracket keeps appending lines until the closing bracket of an
// array-form bfrange entry arrives.
func accumulateBracket(line string, sc *bufio.Scanner) string {
	if !strings.Contains(line, "[") || strings.Contains(line, "]") {
		return line
	}
	for sc.Scan() {
		next := strings.TrimSpace(sc.Text())
		line += " " + next
		if strings.Contains(next, "]") {
			break
		}
	}
	return line
}

func hexTokens(line string) []string {
	var tokens []string
	for {
		start := strings.Index(line, "<")
		if start < 0 {
			break
		}
		end := strings.Index(line[start+1:], ">")
		if end < 0 {
			break
		}
		tokens = append(tokens, strings.ReplaceAll(line[start+1:start+1+end], " ", ""))
		line = line[start+1+end+1:]
	}
	return tokens
}

func hexToBytes(hex string) []byte {
	if len(hex)%2 == 1 {
		hex += "0"
	}
	out := make([]byte, len(hex)/2)
	for i := 0; i < len(hex); i += 2 {
		out[i/2] = fromHexChar(hex[i])<<4 | fromHexChar(hex[i+1])
	}
	return out
}

func fromHexChar(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}

func bytesToInt(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

func intToBytes(v, length int) []byte {
	out := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// decode maps code bytes to text, trying the longest known code length
// first and falling back to passing single bytes through.
func (m *toUnicodeMap) decode(data []byte) string {
	if len(m.lengths) == 0 {
		return string(data)
	}
	var out strings.Builder
	for len(data) > 0 {
		matched := false
		for _, l := range m.lengths {
			if len(data) < l {
				continue
			}
			if val, ok := m.entries[string(data[:l])]; ok {
				out.WriteString(val)
				data = data[l:]
				matched = true
				break
			}
		}
		if !matched {
			out.WriteByte(data[0])
			data = data[1:]
		}
	}
	return out.String()
}
