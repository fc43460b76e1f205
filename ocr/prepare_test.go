package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
)

func TestPrepareGrayscalesAndEncodes(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for i := range src.Pix {
		src.Pix[i] = 0xFF
	}
	in, err := Prepare(src, 3)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if in.PageIndex != 3 {
		t.Fatalf("page index: got %d", in.PageIndex)
	}
	img, err := png.Decode(bytes.NewReader(in.Image))
	if err != nil {
		t.Fatalf("payload is not PNG: %v", err)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Fatalf("payload decoded to %T, want *image.Gray", img)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Fatalf("small raster must keep its size, got %v", img.Bounds())
	}
}

func TestPrepareDownscalesLargeRasters(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4096, 1024))
	in, err := Prepare(src, 0)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(in.Image))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != maxEdge {
		t.Fatalf("longer edge: got %d want %d", img.Bounds().Dx(), maxEdge)
	}
	if img.Bounds().Dy() != maxEdge/4 {
		t.Fatalf("aspect ratio lost: got %v", img.Bounds())
	}
}

func TestPrepareRejectsEmptyBounds(t *testing.T) {
	if _, err := Prepare(image.NewGray(image.Rect(0, 0, 0, 0)), 0); err == nil {
		t.Fatalf("expected error for empty raster")
	}
}

func TestNopEngine(t *testing.T) {
	res, err := NopEngine{}.Recognize(context.Background(), Input{PageIndex: 2})
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if res.Text != "" || res.PageIndex != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}
