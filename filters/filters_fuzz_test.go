package filters

import (
	"context"
	"testing"
	"time"

	"github.com/wudi/pdfrename/ir/raw"
)

func FuzzFilters(f *testing.F) {
	f.Add([]byte("some compressed data"), "FlateDecode")
	f.Add([]byte("<~87cURD_*#4DfTZ)+T~>"), "ASCII85Decode")
	f.Add([]byte("68656c6c6f>"), "ASCIIHexDecode")
	f.Add([]byte{2, 'h', 'i', '!', 128}, "RunLengthDecode")
	f.Add([]byte{0x80, 0x0b, 0x60, 0x50, 0x22, 0x0c}, "LZWDecode")

	f.Fuzz(func(t *testing.T, data []byte, filterName string) {
		known := map[string]bool{
			"FlateDecode":     true,
			"ASCII85Decode":   true,
			"ASCIIHexDecode":  true,
			"RunLengthDecode": true,
			"LZWDecode":       true,
		}
		if !known[filterName] {
			return
		}

		p := NewPipeline([]Decoder{
			NewFlateDecoder(),
			NewASCII85Decoder(),
			NewASCIIHexDecoder(),
			NewRunLengthDecoder(),
			NewLZWDecoder(),
		}, Limits{MaxDecompressedSize: 1024 * 1024, MaxDecodeTime: 5 * time.Second})

		_, _ = p.Decode(context.Background(), data, []string{filterName}, []raw.Dictionary{nil})
	})
}
