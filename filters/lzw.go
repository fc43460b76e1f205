package filters

import (
	"context"
	"errors"

	"github.com/wudi/pdfrename/ir/raw"
)

type lzwDecoder struct{}

// NewLZWDecoder returns the LZWDecode decoder.
func NewLZWDecoder() Decoder { return lzwDecoder{} }

func (lzwDecoder) Name() string { return "LZWDecode" }

// Decode implements the TIFF flavor of LZW used in PDF streams: codes are
// packed most significant bit first and, unless EarlyChange is 0, the code
// width grows one entry before the table boundary.
func (lzwDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	early := paramInt(params, "EarlyChange", 1) != 0
	out, err := lzwDecode(ctx, in, early)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

const (
	lzwClearCode = 256
	lzwEODCode   = 257
	lzwMaxWidth  = 12
)

func lzwDecode(ctx context.Context, in []byte, earlyChange bool) ([]byte, error) {
	table := make([][]byte, 258, 4096)
	for i := 0; i < 256; i++ {
		table[i] = []byte{byte(i)}
	}
	bound := 0
	if earlyChange {
		bound = 1
	}
	var (
		out      []byte
		prev     []byte
		bitBuf   uint32
		bitCount int
		iter     int
	)
	width := 9
	pos := 0
	for {
		if iter++; iter&0x3ff == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		for bitCount < width {
			if pos >= len(in) {
				return out, nil // missing EOD marker tolerated
			}
			bitBuf = bitBuf<<8 | uint32(in[pos])
			pos++
			bitCount += 8
		}
		code := int(bitBuf >> uint(bitCount-width) & (1<<uint(width) - 1))
		bitCount -= width
		if code == lzwClearCode {
			table = table[:258]
			width = 9
			prev = nil
			continue
		}
		if code == lzwEODCode {
			return out, nil
		}
		var seq []byte
		switch {
		case code < len(table) && table[code] != nil:
			seq = table[code]
		case code == len(table) && prev != nil:
			seq = append(append([]byte{}, prev...), prev[0])
		default:
			return nil, errors.New("invalid code")
		}
		out = append(out, seq...)
		if int64(len(out)) > maxDecodedBytes {
			return nil, errors.New("decoded size exceeds limit")
		}
		if prev != nil && len(table) < 4096 {
			entry := append(append([]byte{}, prev...), seq[0])
			table = append(table, entry)
		}
		prev = seq
		if len(table)+bound >= 1<<uint(width) && width < lzwMaxWidth {
			width++
		}
	}
}
