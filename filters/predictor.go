package filters

import (
	"errors"
	"fmt"

	"github.com/wudi/pdfrename/ir/raw"
)

// applyPredictor reverses the predictor transform declared in DecodeParms.
// Predictor 2 is the TIFF horizontal predictor; 10 and up are the PNG row
// filters, where every row begins with a filter type byte.
func applyPredictor(data []byte, params raw.Dictionary) ([]byte, error) {
	pred := paramInt(params, "Predictor", 1)
	if pred <= 1 {
		return data, nil
	}
	colors := paramInt(params, "Colors", 1)
	bpc := paramInt(params, "BitsPerComponent", 8)
	columns := paramInt(params, "Columns", 1)
	if colors < 1 || bpc < 1 || columns < 1 {
		return nil, errors.New("invalid predictor parameters")
	}
	switch {
	case pred == 2:
		return tiffPredictor(data, colors, bpc, columns)
	case pred >= 10 && pred <= 15:
		bpp := (colors*bpc + 7) / 8
		rowLen := (colors*bpc*columns + 7) / 8
		return pngPredictor(data, bpp, rowLen)
	default:
		return nil, fmt.Errorf("unsupported predictor %d", pred)
	}
}

func pngPredictor(data []byte, bpp, rowLen int) ([]byte, error) {
	if rowLen <= 0 {
		return nil, errors.New("invalid predictor row length")
	}
	out := make([]byte, 0, len(data))
	prev := make([]byte, rowLen)
	for rowStart := 0; rowStart < len(data); rowStart += rowLen + 1 {
		if rowStart+rowLen+1 > len(data) {
			return nil, errors.New("truncated predictor row")
		}
		row := make([]byte, rowLen)
		copy(row, data[rowStart+1:rowStart+1+rowLen])
		switch ft := data[rowStart]; ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = row[i-bpp]
				}
				row[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = row[i-bpp]
					upLeft = prev[i-bpp]
				}
				row[i] += paethPredict(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("unknown PNG row filter %d", ft)
		}
		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paethPredict(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := absInt(p-int(a)), absInt(p-int(b)), absInt(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func tiffPredictor(data []byte, colors, bpc, columns int) ([]byte, error) {
	if bpc != 8 {
		return nil, fmt.Errorf("TIFF predictor requires 8 bits per component, got %d", bpc)
	}
	rowLen := colors * columns
	if rowLen == 0 || len(data)%rowLen != 0 {
		return nil, errors.New("TIFF predictor row size mismatch")
	}
	out := make([]byte, len(data))
	copy(out, data)
	for row := 0; row < len(out); row += rowLen {
		for i := colors; i < rowLen; i++ {
			out[row+i] += out[row+i-colors]
		}
	}
	return out, nil
}
