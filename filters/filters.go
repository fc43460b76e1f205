package filters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wudi/pdfrename/ir/raw"
)

// Decoder decodes one stream filter. Implementations receive the matching
// DecodeParms dictionary, which may be nil.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params raw.Dictionary) ([]byte, error)
}

// Limits bounds pipeline work so corrupted or hostile streams cannot exhaust
// memory or stall a run.
type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

// maxDecodedBytes caps the output of any single decompressing decoder,
// independent of pipeline limits, because the limit check between stages
// runs only after a stage has already allocated its output.
const maxDecodedBytes int64 = 1 << 28

// UnsupportedError reports a filter the pipeline recognizes but cannot
// decode. Callers typically skip the stream and move on.
type UnsupportedError struct {
	Filter string
}

func (e UnsupportedError) Error() string { return "unsupported filter: " + e.Filter }

type Pipeline struct {
	decoders []Decoder
	limits   Limits
}

// NewPipeline constructs a pipeline with the provided decoders and limits.
func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	return &Pipeline{decoders: decoders, limits: limits}
}

// DefaultPipeline returns a pipeline carrying every built-in decoder, with
// limits suited to interactive use.
func DefaultPipeline() *Pipeline {
	return NewPipeline([]Decoder{
		NewFlateDecoder(),
		NewLZWDecoder(),
		NewASCIIHexDecoder(),
		NewASCII85Decoder(),
		NewRunLengthDecoder(),
		NewCCITTDecoder(),
		NewDCTDecoder(),
		NewJPXDecoder(),
	}, Limits{MaxDecompressedSize: 1 << 28, MaxDecodeTime: 30 * time.Second})
}

func (p *Pipeline) findDecoder(name string) Decoder {
	for _, d := range p.decoders {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// Decode runs data through each named filter in order. A Crypt entry is
// skipped; decryption happens before filter decoding.
func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []raw.Dictionary) ([]byte, error) {
	if p.limits.MaxDecodeTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.limits.MaxDecodeTime)
		defer cancel()
	}
	data := input
	for i, name := range filterNames {
		if name == "Crypt" {
			continue
		}
		dec := p.findDecoder(name)
		if dec == nil {
			return nil, fmt.Errorf("unknown filter %q", name)
		}
		var param raw.Dictionary
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(ctx, data, param)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, errors.New("decoded size exceeds limit")
		}
		data = out
	}
	return data, nil
}

// copyLimited drains src, failing once max bytes are exceeded or ctx is
// done. max <= 0 means unbounded.
func copyLimited(ctx context.Context, src io.Reader, max int64) ([]byte, error) {
	var out bytes.Buffer
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		n, err := src.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
			if max > 0 && int64(out.Len()) > max {
				return nil, errors.New("decoded size exceeds limit")
			}
		}
		if err == io.EOF {
			return out.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
