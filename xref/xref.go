package xref

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/pdfrename/filters"
	"github.com/wudi/pdfrename/ir/raw"
	"github.com/wudi/pdfrename/recovery"
	"github.com/wudi/pdfrename/scanner"
)

// Table maps object numbers to their location. Objects live either at a
// byte offset in the file or inside an object stream; Lookup answers the
// first case, ObjStream the second.
type Table interface {
	Lookup(objNum int) (offset int64, gen int, found bool)
	ObjStream(objNum int) (streamNum int, idx int, found bool)
	Objects() []int
	Type() string
}

// Resolver locates and parses the cross-reference data of a document.
// Trailer and Linearized report on the most recent Resolve call.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
	Trailer() raw.Dictionary
	Linearized() bool
}

type ResolverConfig struct {
	// MaxXRefDepth bounds Prev chain walks. Zero means the default of 32.
	MaxXRefDepth int
	// Recovery, when set, enables rebuilding the table by scanning for
	// object headers if the cross-reference data is missing or damaged.
	Recovery recovery.Strategy
}

type entry struct {
	offset    int64
	gen       int
	inStream  bool
	streamNum int
	streamIdx int
}

type table struct {
	entries map[int]entry
	typ     string
	trailer raw.Dictionary
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.inStream {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) ObjStream(objNum int) (int, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || !e.inStream {
		return 0, 0, false
	}
	return e.streamNum, e.streamIdx, true
}

func (t *table) Objects() []int {
	nums := make([]int, 0, len(t.entries))
	for n := range t.entries {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

func (t *table) Type() string { return t.typ }

// section is one parsed cross-reference segment: a classic table or an
// xref stream, with its own trailer dictionary.
type section struct {
	entries map[int]entry
	trailer raw.Dictionary
	typ     string
}

type tableResolver struct {
	cfg        ResolverConfig
	pipeline   *filters.Pipeline
	trailer    raw.Dictionary
	linearized bool
}

// NewResolver builds a Resolver. Xref streams are decoded with the default
// filter pipeline.
func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 32
	}
	return &tableResolver{cfg: cfg, pipeline: filters.DefaultPipeline()}
}

func (t *tableResolver) Trailer() raw.Dictionary { return t.trailer }
func (t *tableResolver) Linearized() bool        { return t.linearized }

func (t *tableResolver) Resolve(ctx context.Context, r io.ReaderAt) (Table, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	start, serr := findStartXref(data)
	if serr != nil {
		if t.cfg.Recovery == nil {
			return nil, serr
		}
		tbl, rerr := repairScan(ctx, data, t.cfg.Recovery)
		if rerr != nil {
			return nil, fmt.Errorf("xref repair: %w", rerr)
		}
		t.trailer = tbl.trailer
		t.linearized = detectLinearized(data)
		return tbl, nil
	}

	merged := &table{entries: make(map[int]entry)}
	visited := make(map[int64]bool)
	offset := start
	for depth := 0; ; depth++ {
		if depth >= t.cfg.MaxXRefDepth {
			return nil, errors.New("xref chain exceeds depth limit")
		}
		if visited[offset] {
			break
		}
		visited[offset] = true

		sec, err := t.parseSection(ctx, data, offset)
		if err != nil {
			if depth == 0 && t.cfg.Recovery != nil {
				tbl, rerr := repairScan(ctx, data, t.cfg.Recovery)
				if rerr != nil {
					return nil, fmt.Errorf("xref repair after %v: %w", err, rerr)
				}
				t.trailer = tbl.trailer
				t.linearized = detectLinearized(data)
				return tbl, nil
			}
			if depth == 0 {
				return nil, err
			}
			// a broken older section loses its objects, not the document
			break
		}
		if depth == 0 {
			merged.typ = sec.typ
			merged.trailer = sec.trailer
			t.trailer = sec.trailer
			if err := validateSize(sec); err != nil && t.cfg.Recovery == nil {
				return nil, err
			}
		}
		mergeMissing(merged, sec.entries)

		// hybrid files hide newer objects in a stream referenced by XRefStm
		if sec.typ == "table" {
			if stm, ok := dictInt(sec.trailer, "XRefStm"); ok && !visited[stm] {
				visited[stm] = true
				if ssec, err := t.parseStreamSection(ctx, data, stm); err == nil {
					mergeMissing(merged, ssec.entries)
				}
			}
		}

		prev, ok := dictInt(sec.trailer, "Prev")
		if !ok {
			break
		}
		offset = prev
	}

	t.linearized = detectLinearized(data)
	return merged, nil
}

// mergeMissing adds src entries that dst does not already have. Sections
// are visited newest first, so existing entries always win.
func mergeMissing(dst *table, src map[int]entry) {
	for num, e := range src {
		if _, exists := dst.entries[num]; !exists {
			dst.entries[num] = e
		}
	}
}

func validateSize(sec *section) error {
	size, ok := dictInt(sec.trailer, "Size")
	if !ok {
		return errors.New("trailer missing Size")
	}
	for num := range sec.entries {
		if int64(num) >= size {
			return fmt.Errorf("xref entry %d exceeds trailer Size %d", num, size)
		}
	}
	return nil
}

func (t *tableResolver) parseSection(ctx context.Context, data []byte, offset int64) (*section, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("xref offset %d out of range", offset)
	}
	rest := bytes.TrimLeft(data[offset:], " \r\n\t")
	if bytes.HasPrefix(rest, []byte("xref")) {
		return parseClassicSection(data, offset)
	}
	return t.parseStreamSection(ctx, data, offset)
}

// parseClassicSection reads a classic "xref" table and its trailer
// dictionary starting at offset.
func parseClassicSection(data []byte, offset int64) (*section, error) {
	rest := data[offset:]
	trailerIdx := bytes.Index(rest, []byte("trailer"))
	if trailerIdx < 0 {
		return nil, errors.New("xref table missing trailer")
	}

	entries := make(map[int]entry)
	sc := bufio.NewScanner(bytes.NewReader(rest[:trailerIdx]))
	seenKeyword := false
	nextObj := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !seenKeyword {
			if line != "xref" {
				return nil, fmt.Errorf("expected xref keyword, got %q", line)
			}
			seenKeyword = true
			continue
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 2:
			start, err1 := strconv.Atoi(fields[0])
			_, err2 := strconv.Atoi(fields[1])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("bad xref subsection header %q", line)
			}
			nextObj = start
		case 3:
			off, err1 := strconv.ParseInt(fields[0], 10, 64)
			gen, err2 := strconv.Atoi(fields[1])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("bad xref entry %q", line)
			}
			if fields[2] == "n" {
				entries[nextObj] = entry{offset: off, gen: gen}
			}
			nextObj++
		default:
			return nil, fmt.Errorf("bad xref line %q", line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	trailer, err := parseDictAt(data, offset+int64(trailerIdx)+int64(len("trailer")))
	if err != nil {
		return nil, fmt.Errorf("parse trailer: %w", err)
	}
	return &section{entries: entries, trailer: trailer, typ: "table"}, nil
}

// parseStreamSection reads an xref stream object starting at offset.
func (t *tableResolver) parseStreamSection(ctx context.Context, data []byte, offset int64) (*section, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	tr := raw.NewTokenReader(s)
	if err := expectObjHeader(tr); err != nil {
		return nil, err
	}
	obj, err := raw.ParseObject(tr)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(raw.Dictionary)
	if !ok {
		return nil, errors.New("xref stream object is not a dictionary")
	}
	if n, ok := dictInt(dict, "Length"); ok {
		s.SetNextStreamLength(n)
	}
	tok, err := tr.Next()
	if err != nil {
		return nil, err
	}
	if tok.Type != scanner.TokenStream {
		return nil, errors.New("xref stream missing stream data")
	}

	payload := tok.Bytes
	if names, parms := filters.ExtractFilters(dict); len(names) > 0 {
		payload, err = t.pipeline.Decode(ctx, payload, names, parms)
		if err != nil {
			return nil, fmt.Errorf("decode xref stream: %w", err)
		}
	}

	widths, err := fieldWidths(dict)
	if err != nil {
		return nil, err
	}
	size, ok := dictInt(dict, "Size")
	if !ok {
		return nil, errors.New("xref stream missing Size")
	}
	index := []int64{0, size}
	if obj, ok := dict.Get(raw.NameObj{Val: "Index"}); ok {
		arr, ok := obj.(raw.Array)
		if !ok || arr.Len()%2 != 0 {
			return nil, errors.New("xref stream Index malformed")
		}
		index = index[:0]
		for i := 0; i < arr.Len(); i++ {
			item, _ := arr.Get(i)
			n, ok := item.(raw.Number)
			if !ok {
				return nil, errors.New("xref stream Index malformed")
			}
			index = append(index, n.Int())
		}
	}

	rowLen := int(widths[0] + widths[1] + widths[2])
	if rowLen == 0 {
		return nil, errors.New("xref stream W is all zero")
	}
	entries := make(map[int]entry)
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for n := int64(0); n < count; n++ {
			if pos+rowLen > len(payload) {
				return nil, errors.New("xref stream data truncated")
			}
			f0 := readField(payload[pos:], widths[0], 1)
			f1 := readField(payload[pos+int(widths[0]):], widths[1], 0)
			f2 := readField(payload[pos+int(widths[0]+widths[1]):], widths[2], 0)
			pos += rowLen

			objNum := int(first + n)
			switch f0 {
			case 0: // free
			case 1:
				entries[objNum] = entry{offset: f1, gen: int(f2)}
			case 2:
				entries[objNum] = entry{inStream: true, streamNum: int(f1), streamIdx: int(f2)}
			default:
				// unknown types are reserved; treat like free
			}
		}
	}
	return &section{entries: entries, trailer: dict, typ: "xref-stream"}, nil
}

func fieldWidths(dict raw.Dictionary) ([3]int64, error) {
	var widths [3]int64
	obj, ok := dict.Get(raw.NameObj{Val: "W"})
	if !ok {
		return widths, errors.New("xref stream missing W")
	}
	arr, ok := obj.(raw.Array)
	if !ok || arr.Len() != 3 {
		return widths, errors.New("xref stream W malformed")
	}
	for i := 0; i < 3; i++ {
		item, _ := arr.Get(i)
		n, ok := item.(raw.Number)
		if !ok || n.Int() < 0 || n.Int() > 8 {
			return widths, errors.New("xref stream W malformed")
		}
		widths[i] = n.Int()
	}
	return widths, nil
}

// readField decodes a big-endian integer of width bytes; zero width yields
// the default (the entry type defaults to 1).
func readField(b []byte, width, def int64) int64 {
	if width == 0 {
		return def
	}
	var v int64
	for i := int64(0); i < width; i++ {
		v = v<<8 | int64(b[i])
	}
	return v
}

func expectObjHeader(tr *raw.TokenReader) error {
	num, err := tr.Next()
	if err != nil {
		return err
	}
	if num.Type != scanner.TokenNumber || !num.IsInt {
		return fmt.Errorf("expected object number at offset %d", num.Pos)
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

// parseDictAt assembles a dictionary from the token stream at offset.
func parseDictAt(data []byte, offset int64) (raw.Dictionary, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	obj, err := raw.ParseObject(raw.NewTokenReader(s))
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(raw.Dictionary)
	if !ok {
		return nil, errors.New("expected dictionary")
	}
	return dict, nil
}

func dictInt(d raw.Dictionary, key string) (int64, bool) {
	if d == nil {
		return 0, false
	}
	obj, ok := d.Get(raw.NameObj{Val: key})
	if !ok {
		return 0, false
	}
	n, ok := obj.(raw.Number)
	if !ok {
		return 0, false
	}
	return n.Int(), true
}

// findStartXref locates the last startxref marker and returns the offset it
// announces.
func findStartXref(data []byte) (int64, error) {
	tail := data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := tail[idx+len("startxref"):]
	fields := strings.Fields(string(rest))
	if len(fields) == 0 {
		return 0, errors.New("startxref missing offset")
	}
	off, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("startxref offset %q: %w", fields[0], err)
	}
	if off < 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("startxref offset %d out of range", off)
	}
	return off, nil
}

// detectLinearized reports whether the first object in the file carries a
// Linearized dictionary.
func detectLinearized(data []byte) bool {
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	s := scanner.New(bytes.NewReader(head), scanner.Config{})
	tr := raw.NewTokenReader(s)
	if err := expectObjHeader(tr); err != nil {
		return false
	}
	obj, err := raw.ParseObject(tr)
	if err != nil {
		return false
	}
	dict, ok := obj.(raw.Dictionary)
	if !ok {
		return false
	}
	v, ok := dictInt(dict, "Linearized")
	return ok && v > 0
}

// readAll drains a ReaderAt in chunks. Cross-reference resolution needs
// random access over the whole file anyway, and rename candidates are
// interactive-scale documents.
func readAll(r io.ReaderAt) ([]byte, error) {
	if br, ok := r.(*bytes.Reader); ok {
		data := make([]byte, br.Len())
		if _, err := br.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return data, nil
	}
	var out []byte
	buf := make([]byte, 256*1024)
	var off int64
	for {
		n, err := r.ReadAt(buf, off)
		out = append(out, buf[:n]...)
		off += int64(n)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
	}
}
