package extractor_test

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"image"
	"testing"

	"github.com/wudi/pdfrename/extractor"
	"github.com/wudi/pdfrename/parser"
)

type fixture struct {
	buf  bytes.Buffer
	offs map[int]int64
}

func newFixture() *fixture {
	f := &fixture{offs: map[int]int64{}}
	f.buf.WriteString("%PDF-1.4\n")
	return f
}

func (f *fixture) add(num int, body string) {
	f.offs[num] = int64(f.buf.Len())
	fmt.Fprintf(&f.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (f *fixture) addStream(num int, dict string, data []byte) {
	f.offs[num] = int64(f.buf.Len())
	fmt.Fprintf(&f.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, dict, len(data))
	f.buf.Write(data)
	f.buf.WriteString("\nendstream\nendobj\n")
}

func (f *fixture) finish(trailerExtra string) []byte {
	xrefOff := f.buf.Len()
	fmt.Fprintf(&f.buf, "xref\n0 %d\n", len(f.offs)+1)
	f.buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(f.offs); i++ {
		fmt.Fprintf(&f.buf, "%010d 00000 n \n", f.offs[i])
	}
	fmt.Fprintf(&f.buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n",
		len(f.offs)+1, trailerExtra, xrefOff)
	return f.buf.Bytes()
}

func openFixture(t *testing.T, data []byte) (*parser.Document, *extractor.Extractor) {
	t.Helper()
	doc, err := parser.Parse(context.Background(), bytes.NewReader(data), parser.Config{})
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	t.Cleanup(func() { doc.Close() })
	return doc, extractor.New(doc)
}

func TestMetadata(t *testing.T) {
	f := newFixture()
	f.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.add(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	// UTF-16BE title with BOM: "Schrödinger"
	f.add(3, "<< /Title <FEFF005300630068007200F600640069006E006700650072> /Author (A. Writer) >>")
	data := f.finish(" /Info 3 0 R")

	_, ex := openFixture(t, data)
	md, err := ex.Metadata(context.Background())
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if md.Title != "Schrödinger" {
		t.Fatalf("utf16 title: got %q", md.Title)
	}
	if md.Author != "A. Writer" {
		t.Fatalf("author: got %q", md.Author)
	}
}

func TestMetadataAbsent(t *testing.T) {
	f := newFixture()
	f.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.add(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	_, ex := openFixture(t, f.finish(""))
	md, err := ex.Metadata(context.Background())
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if md != (extractor.Metadata{}) {
		t.Fatalf("expected zero metadata, got %+v", md)
	}
}

func TestPageTreeAndText(t *testing.T) {
	content1 := "BT /F1 12 Tf (A Study of Things) Tj 0 -14 Td (First Author) Tj ET"
	content2 := "BT /F1 10 Tf (Second page body) Tj ET"
	f := newFixture()
	f.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.add(2, "<< /Type /Pages /Kids [3 0 R 5 0 R] /Count 2 >>")
	f.add(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>")
	f.addStream(4, "", []byte(content1))
	f.add(5, "<< /Type /Page /Parent 2 0 R /Contents 6 0 R >>")
	f.addStream(6, "", []byte(content2))
	_, ex := openFixture(t, f.finish(""))

	ctx := context.Background()
	n, err := ex.PageCount(ctx)
	if err != nil || n != 2 {
		t.Fatalf("page count: got (%d, %v) want 2", n, err)
	}

	text, err := ex.PageText(ctx, 0)
	if err != nil {
		t.Fatalf("page text: %v", err)
	}
	want := "A Study of Things\nFirst Author"
	if text != want {
		t.Fatalf("page 0 text:\ngot  %q\nwant %q", text, want)
	}

	text, err = ex.PageText(ctx, 1)
	if err != nil {
		t.Fatalf("page text: %v", err)
	}
	if text != "Second page body" {
		t.Fatalf("page 1 text: got %q", text)
	}

	if _, err := ex.PageText(ctx, 2); err == nil {
		t.Fatalf("page index out of range must error")
	}
}

func TestPageTextTJAndFlate(t *testing.T) {
	content := "BT /F1 12 Tf [(Sp) -20 (lit ) 4 (title)] TJ ET"
	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	zw.Write([]byte(content))
	zw.Close()

	f := newFixture()
	f.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	f.add(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>")
	f.addStream(4, "/Filter /FlateDecode", comp.Bytes())
	_, ex := openFixture(t, f.finish(""))

	text, err := ex.PageText(context.Background(), 0)
	if err != nil {
		t.Fatalf("page text: %v", err)
	}
	if text != "Sp lit title" {
		t.Fatalf("TJ text: got %q", text)
	}
}

func TestPageTextToUnicode(t *testing.T) {
	cmap := `/CIDInit /ProcSet findresource begin
begincmap
1 begincodespacerange
<00> <FF>
endcodespacerange
2 beginbfchar
<41> <0041>
<42> <00E9>
endbfchar
endcmap`
	content := "BT /F1 12 Tf (AB) Tj ET"
	f := newFixture()
	f.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	f.add(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>")
	f.addStream(4, "", []byte(content))
	f.add(5, "<< /Type /Font /Subtype /Type1 /ToUnicode 6 0 R >>")
	f.addStream(6, "", []byte(cmap))
	_, ex := openFixture(t, f.finish(""))

	text, err := ex.PageText(context.Background(), 0)
	if err != nil {
		t.Fatalf("page text: %v", err)
	}
	if text != "Aé" {
		t.Fatalf("ToUnicode text: got %q", text)
	}
}

func TestPageImageGray(t *testing.T) {
	w, h := 4, 3
	samples := bytes.Repeat([]byte{0x80}, w*h)
	f := newFixture()
	f.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	f.add(3, "<< /Type /Page /Parent 2 0 R /Resources << /XObject << /Im0 4 0 R >> >> >>")
	f.addStream(4, fmt.Sprintf(
		"/Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8", w, h),
		samples)
	_, ex := openFixture(t, f.finish(""))

	img, err := ex.PageImage(context.Background(), 0)
	if err != nil {
		t.Fatalf("page image: %v", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("image type %T, want *image.Gray", img)
	}
	if gray.Bounds().Dx() != w || gray.Bounds().Dy() != h {
		t.Fatalf("bounds: got %v", gray.Bounds())
	}
	if gray.Pix[0] != 0x80 {
		t.Fatalf("pixel: got %#x", gray.Pix[0])
	}
}

func TestPageImageMissing(t *testing.T) {
	f := newFixture()
	f.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	f.add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	f.add(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>")
	f.addStream(4, "", []byte("BT (text only) Tj ET"))
	_, ex := openFixture(t, f.finish(""))

	if _, err := ex.PageImage(context.Background(), 0); err == nil {
		t.Fatalf("expected ErrNoPageImage")
	}
}
