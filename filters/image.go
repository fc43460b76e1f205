package filters

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/wudi/pdfrename/ir/raw"
)

const (
	// maxImageDimension caps width and height so corrupted files that lie
	// about image sizes cannot force huge allocations.
	maxImageDimension = 32768
	// maxImagePixels bounds the total pixel count (roughly 64MP), keeping
	// RGBA buffers under 256 MB.
	maxImagePixels int64 = 64 * 1024 * 1024
)

func validateImageBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image bounds invalid (%d x %d)", width, height)
	}
	if width > maxImageDimension || height > maxImageDimension {
		return fmt.Errorf("image dimension exceeds limit (%d x %d)", width, height)
	}
	pixels := int64(width) * int64(height)
	if pixels > maxImagePixels {
		return fmt.Errorf("image pixel count %d exceeds limit %d", pixels, maxImagePixels)
	}
	return nil
}

type dctDecoder struct{}

// NewDCTDecoder returns the DCTDecode decoder. JPEG data decodes to tightly
// packed RGBA samples, four bytes per pixel.
func NewDCTDecoder() Decoder { return dctDecoder{} }

func (dctDecoder) Name() string { return "DCTDecode" }

func (dctDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	return rgbaSamples(img)
}

type jpxDecoder struct{}

// NewJPXDecoder returns the JPXDecode decoder. JPEG 2000 codestreams need a
// native decoder this build does not carry, so real JPX data reports
// UnsupportedError. Some producers mislabel PNG data as JPX; that case
// decodes normally.
func NewJPXDecoder() Decoder { return jpxDecoder{} }

func (jpxDecoder) Name() string { return "JPXDecode" }

func (jpxDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	if img, err := png.Decode(bytes.NewReader(in)); err == nil {
		return rgbaSamples(img)
	}
	return nil, UnsupportedError{Filter: "JPXDecode"}
}

func rgbaSamples(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if err := validateImageBounds(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}
	if n, ok := img.(*image.NRGBA); ok && n.Stride == 4*b.Dx() && b.Min == (image.Point{}) {
		return n.Pix, nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst.Pix, nil
}
