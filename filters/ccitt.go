package filters

import (
	"bytes"
	"context"
	"errors"
	"image"

	"golang.org/x/image/ccitt"

	"github.com/wudi/pdfrename/ir/raw"
)

type ccittDecoder struct{}

// NewCCITTDecoder returns the CCITTFaxDecode decoder. Output is 8-bit gray,
// one byte per pixel, row major, which the page rasterizer consumes
// directly. Mixed two-dimensional Group 3 data (K > 0) is not supported.
func NewCCITTDecoder() Decoder { return ccittDecoder{} }

func (ccittDecoder) Name() string { return "CCITTFaxDecode" }

func (ccittDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	k := paramInt(params, "K", 0)
	if k > 0 {
		return nil, UnsupportedError{Filter: "CCITTFaxDecode"}
	}
	sf := ccitt.Group3
	if k < 0 {
		sf = ccitt.Group4
	}
	columns := paramInt(params, "Columns", 1728)
	rows := paramInt(params, "Rows", 0)
	if rows <= 0 {
		// the rasterizer passes the image Height through when Rows is absent
		rows = paramInt(params, "Height", 0)
	}
	if rows <= 0 {
		return nil, errors.New("row count required")
	}
	if err := validateImageBounds(columns, rows); err != nil {
		return nil, err
	}
	opts := &ccitt.Options{
		Invert: paramBool(params, "BlackIs1", false),
		Align:  paramBool(params, "EncodedByteAlign", false),
	}
	dst := image.NewGray(image.Rect(0, 0, columns, rows))
	if err := ccitt.DecodeIntoGray(dst, bytes.NewReader(in), ccitt.MSB, sf, opts); err != nil {
		return nil, err
	}
	return dst.Pix, nil
}
