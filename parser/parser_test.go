package parser_test

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto/md5"
	"crypto/rc4"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/wudi/pdfrename/ir/raw"
	"github.com/wudi/pdfrename/parser"
	"github.com/wudi/pdfrename/recovery"
)

func addObj(buf *bytes.Buffer, num int, body string) int64 {
	off := int64(buf.Len())
	fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", num, body)
	return off
}

func writeXref(buf *bytes.Buffer, offs map[int]int64, trailer string) {
	xrefOff := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n", len(offs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(offs); i++ {
		fmt.Fprintf(buf, "%010d 00000 n \n", offs[i])
	}
	fmt.Fprintf(buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xrefOff)
}

func buildDocument(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.6\n")
	offs := map[int]int64{}
	offs[1] = addObj(&buf, 1, "<< /Type /Catalog /Pages 2 0 R >>")
	offs[2] = addObj(&buf, 2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	content := "BT /F1 12 Tf (Hello) Tj ET"
	offs[3] = addObj(&buf, 3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>")
	offs[4] = addObj(&buf, 4, fmt.Sprintf(
		"<< /Length 5 0 R >>\nstream\n%s\nendstream", content))
	offs[5] = addObj(&buf, 5, fmt.Sprintf("%d", len(content)))
	offs[6] = addObj(&buf, 6, "<< /Title (Sample Title) /Author (A. Writer) >>")
	writeXref(&buf, offs, fmt.Sprintf("<< /Size %d /Root 1 0 R /Info 6 0 R >>", len(offs)+1))
	return buf.Bytes()
}

func TestParseDocument(t *testing.T) {
	ctx := context.Background()
	doc, err := parser.Parse(ctx, bytes.NewReader(buildDocument(t)), parser.Config{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer doc.Close()

	if doc.Version() != "1.6" {
		t.Fatalf("version: got %q want 1.6", doc.Version())
	}
	if doc.Encrypted() {
		t.Fatalf("plain document reported encrypted")
	}

	cat, err := doc.Catalog(ctx)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if typ, _ := cat.Get(raw.NameObj{Val: "Type"}); typ.(raw.Name).Value() != "Catalog" {
		t.Fatalf("catalog Type: got %v", typ)
	}

	info, err := doc.Info(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	title, ok := info.Get(raw.NameObj{Val: "Title"})
	if !ok {
		t.Fatalf("info missing Title")
	}
	if got := string(title.(raw.String).Value()); got != "Sample Title" {
		t.Fatalf("title: got %q", got)
	}
}

// TestIndirectStreamLength exercises a Length held in its own object,
// resolved mid-parse.
func TestIndirectStreamLength(t *testing.T) {
	ctx := context.Background()
	doc, err := parser.Parse(ctx, bytes.NewReader(buildDocument(t)), parser.Config{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer doc.Close()

	obj, err := doc.Load(ctx, raw.ObjectRef{Num: 4})
	if err != nil {
		t.Fatalf("load contents: %v", err)
	}
	st, ok := obj.(raw.Stream)
	if !ok {
		t.Fatalf("contents is %T, want stream", obj)
	}
	data, err := doc.Loader().DecodeStream(ctx, st)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Contains(data, []byte("(Hello) Tj")) {
		t.Fatalf("stream payload: %q", data)
	}
}

func TestParseObjectStream(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")
	offs := map[int]int64{}
	offs[1] = addObj(&buf, 1, "<< /Type /Catalog /Pages 2 0 R >>")
	offs[2] = addObj(&buf, 2, "<< /Type /Pages /Kids [] /Count 0 >>")

	body1 := "<< /Title (Packed) >>"
	body2 := "(loose string)"
	header := fmt.Sprintf("4 0 5 %d\n", len(body1)+1)
	plain := header + body1 + " " + body2
	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	zw.Write([]byte(plain))
	zw.Close()
	offs[3] = int64(buf.Len())
	fmt.Fprintf(&buf, "3 0 obj\n<< /Type /ObjStm /N 2 /First %d /Filter /FlateDecode /Length %d >>\nstream\n",
		len(header), comp.Len())
	buf.Write(comp.Bytes())
	buf.WriteString("\nendstream\nendobj\n")

	// xref stream so compressed entries can be addressed
	xrefObjOff := int64(buf.Len())
	row := func(typ byte, f1 int64, f2 byte) []byte {
		return []byte{typ, byte(f1 >> 24), byte(f1 >> 16), byte(f1 >> 8), byte(f1), f2}
	}
	var rows bytes.Buffer
	rows.Write(row(0, 0, 255))
	rows.Write(row(1, offs[1], 0))
	rows.Write(row(1, offs[2], 0))
	rows.Write(row(1, offs[3], 0))
	rows.Write(row(2, 3, 0))
	rows.Write(row(2, 3, 1))
	rows.Write(row(1, xrefObjOff, 0))
	fmt.Fprintf(&buf, "6 0 obj\n<< /Type /XRef /Size 7 /W [1 4 1] /Root 1 0 R /Length %d >>\nstream\n", rows.Len())
	buf.Write(rows.Bytes())
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefObjOff)

	ctx := context.Background()
	doc, err := parser.Parse(ctx, bytes.NewReader(buf.Bytes()), parser.Config{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer doc.Close()

	obj, err := doc.Load(ctx, raw.ObjectRef{Num: 4})
	if err != nil {
		t.Fatalf("load compressed object: %v", err)
	}
	dict, ok := obj.(raw.Dictionary)
	if !ok {
		t.Fatalf("object 4 is %T, want dictionary", obj)
	}
	title, _ := dict.Get(raw.NameObj{Val: "Title"})
	if got := string(title.(raw.String).Value()); got != "Packed" {
		t.Fatalf("title from object stream: got %q", got)
	}

	obj, err = doc.Load(ctx, raw.ObjectRef{Num: 5})
	if err != nil {
		t.Fatalf("load second compressed object: %v", err)
	}
	if got := string(obj.(raw.String).Value()); got != "loose string" {
		t.Fatalf("string from object stream: got %q", got)
	}
}

func TestParseRepairsMissingStartxref(t *testing.T) {
	data := buildDocument(t)
	broken := bytes.Replace(data, []byte("startxref"), []byte("startxrff"), 1)

	ctx := context.Background()
	if _, err := parser.Parse(ctx, bytes.NewReader(broken), parser.Config{}); err == nil {
		t.Fatalf("strict parse of broken file must fail")
	}

	doc, err := parser.Parse(ctx, bytes.NewReader(broken), parser.Config{Recovery: recovery.NewLenientStrategy()})
	if err != nil {
		t.Fatalf("lenient parse: %v", err)
	}
	defer doc.Close()
	info, err := doc.Info(ctx)
	if err != nil || info == nil {
		t.Fatalf("info after repair: %v %v", info, err)
	}
	title, _ := info.Get(raw.NameObj{Val: "Title"})
	if got := string(title.(raw.String).Value()); got != "Sample Title" {
		t.Fatalf("title after repair: got %q", got)
	}
}

// pdfEscape writes binary bytes as a literal string body.
func pdfEscape(b []byte) string {
	var out bytes.Buffer
	for _, c := range b {
		switch c {
		case '\\', '(', ')':
			out.WriteByte('\\')
			out.WriteByte(c)
		case '\r':
			out.WriteString("\\r")
		case '\n':
			out.WriteString("\\n")
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

var rc4Padding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func rc4Apply(key, data []byte) []byte {
	c, _ := rc4.NewCipher(key)
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

// TestParseEncryptedEmptyPassword builds a real RC4 R2 document and checks
// that strings come back decrypted with no password supplied.
func TestParseEncryptedEmptyPassword(t *testing.T) {
	fileID := []byte("fileid00")
	owner := bytes.Repeat([]byte{0x5A}, 32)
	pVal := int32(-4)

	// Algorithm 2, R2: file key from padded empty password.
	h := md5.New()
	h.Write(rc4Padding)
	h.Write(owner)
	var pBuf [4]byte
	binary.LittleEndian.PutUint32(pBuf[:], uint32(pVal))
	h.Write(pBuf[:])
	h.Write(fileID)
	fileKey := h.Sum(nil)[:5]
	user := rc4Apply(fileKey, rc4Padding)

	objKey := func(num int) []byte {
		k := append([]byte{}, fileKey...)
		k = append(k, byte(num), byte(num>>8), byte(num>>16), 0, 0)
		sum := md5.Sum(k)
		return sum[:10]
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offs := map[int]int64{}
	offs[1] = addObj(&buf, 1, "<< /Type /Catalog /Pages 2 0 R >>")
	offs[2] = addObj(&buf, 2, "<< /Type /Pages /Kids [] /Count 0 >>")
	encTitle := rc4Apply(objKey(3), []byte("Locked Title"))
	offs[3] = addObj(&buf, 3, fmt.Sprintf("<< /Title (%s) >>", pdfEscape(encTitle)))
	offs[4] = addObj(&buf, 4, fmt.Sprintf(
		"<< /Filter /Standard /V 1 /R 2 /Length 40 /O (%s) /U (%s) /P %d >>",
		pdfEscape(owner), pdfEscape(user), pVal))
	writeXref(&buf, offs, fmt.Sprintf(
		"<< /Size %d /Root 1 0 R /Info 3 0 R /Encrypt 4 0 R /ID [(%s) (%s)] >>",
		len(offs)+1, fileID, fileID))

	ctx := context.Background()
	doc, err := parser.Parse(ctx, bytes.NewReader(buf.Bytes()), parser.Config{})
	if err != nil {
		t.Fatalf("parse encrypted: %v", err)
	}
	defer doc.Close()
	if !doc.Encrypted() {
		t.Fatalf("document not reported encrypted")
	}
	info, err := doc.Info(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	title, _ := info.Get(raw.NameObj{Val: "Title"})
	if got := string(title.(raw.String).Value()); got != "Locked Title" {
		t.Fatalf("decrypted title: got %q", got)
	}
}
