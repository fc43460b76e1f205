package rename_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/wudi/pdfrename/extractor"
	"github.com/wudi/pdfrename/parser"
)

type pdfBuilder struct {
	buf  bytes.Buffer
	offs map[int]int64
}

func newPDF() *pdfBuilder {
	b := &pdfBuilder{offs: map[int]int64{}}
	b.buf.WriteString("%PDF-1.4\n")
	return b
}

func (b *pdfBuilder) add(num int, body string) {
	b.offs[num] = int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (b *pdfBuilder) addStream(num int, dict string, data []byte) {
	b.offs[num] = int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, dict, len(data))
	b.buf.Write(data)
	b.buf.WriteString("\nendstream\nendobj\n")
}

func (b *pdfBuilder) finish(trailerExtra string) []byte {
	xrefOff := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n", len(b.offs)+1)
	b.buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(b.offs); i++ {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", b.offs[i])
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n",
		len(b.offs)+1, trailerExtra, xrefOff)
	return b.buf.Bytes()
}

// docPDF builds a one-page document. metaTitle "" omits the Info dictionary;
// each line becomes one text-showing operation separated by a line advance.
func docPDF(metaTitle string, lines ...string) []byte {
	var content bytes.Buffer
	content.WriteString("BT /F1 12 Tf ")
	for i, line := range lines {
		if i > 0 {
			content.WriteString("0 -14 Td ")
		}
		fmt.Fprintf(&content, "(%s) Tj ", line)
	}
	content.WriteString("ET")

	b := newPDF()
	b.add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.add(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>")
	b.addStream(4, "", content.Bytes())
	trailerExtra := ""
	if metaTitle != "" {
		b.add(5, fmt.Sprintf("<< /Title (%s) >>", metaTitle))
		trailerExtra = " /Info 5 0 R"
	}
	return b.finish(trailerExtra)
}

func openExtractor(t *testing.T, data []byte) *extractor.Extractor {
	t.Helper()
	doc, err := parser.Parse(context.Background(), bytes.NewReader(data), parser.Config{})
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	t.Cleanup(func() { doc.Close() })
	return extractor.New(doc)
}

func writePDF(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
