package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"

	"github.com/wudi/pdfrename/ir/raw"
)

type flateDecoder struct{}

// NewFlateDecoder returns the FlateDecode decoder.
func NewFlateDecoder() Decoder { return flateDecoder{} }

func (flateDecoder) Name() string { return "FlateDecode" }

// Decode inflates in and reverses any declared predictor. Streams normally
// carry a zlib header, but some producers emit bare deflate data, so that
// is tried second.
func (flateDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	out, err := inflate(ctx, in)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

func inflate(ctx context.Context, in []byte) ([]byte, error) {
	zr, zerr := zlib.NewReader(bytes.NewReader(in))
	if zerr == nil {
		out, err := copyLimited(ctx, zr, maxDecodedBytes)
		zr.Close()
		if err == nil {
			return out, nil
		}
		zerr = err
	}
	fr := flate.NewReader(bytes.NewReader(in))
	defer fr.Close()
	out, err := copyLimited(ctx, fr, maxDecodedBytes)
	if err != nil {
		if zerr != nil {
			return nil, zerr
		}
		return nil, err
	}
	return out, nil
}
