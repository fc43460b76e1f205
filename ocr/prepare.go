package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// maxEdge bounds the longer edge of a prepared raster. Page scans commonly
// arrive at 300+ DPI; recognition quality plateaus well below that while
// runtime does not.
const maxEdge = 2048

// Prepare converts a decoded page raster into an engine input: grayscale,
// downscaled to at most maxEdge on the longer side, PNG-encoded.
func Prepare(img image.Image, pageIndex int) (Input, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Input{}, fmt.Errorf("raster has empty bounds %v", b)
	}

	w, h := b.Dx(), b.Dy()
	if w > maxEdge || h > maxEdge {
		if w >= h {
			h = h * maxEdge / w
			w = maxEdge
		} else {
			w = w * maxEdge / h
			h = maxEdge
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return Input{}, fmt.Errorf("encode raster: %w", err)
	}
	return Input{Image: buf.Bytes(), PageIndex: pageIndex}, nil
}
