// Package ocr abstracts text recognition over page rasters. The interface is
// deliberately small so engines can be backed by native libraries or remote
// services without leaking provider concerns into callers.
package ocr

import "context"

// Input is one encoded image submitted for recognition.
type Input struct {
	// Image is a PNG payload.
	Image []byte
	// PageIndex links the input back to the zero-based page it came from.
	PageIndex int
	// Languages lists trained-data hints (e.g. "eng"). Empty means the
	// engine default.
	Languages []string
	// Variables carries engine-specific knobs (e.g. Tesseract's
	// tessedit_pageseg_mode) without hard-coding them into the API.
	Variables map[string]string
}

// Result is the recognized text for one input.
type Result struct {
	Text      string
	PageIndex int
}

// Engine recognizes text in one image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}

// NopEngine recognizes nothing. It stands in when OCR is disabled.
type NopEngine struct{}

func (NopEngine) Name() string { return "nop" }

func (NopEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	return Result{PageIndex: in.PageIndex}, nil
}
