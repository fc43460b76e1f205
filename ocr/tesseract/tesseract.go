// Package tesseract backs the ocr.Engine interface with the gosseract
// client. It requires the native Tesseract library at build and run time,
// which is why it lives in its own package: importers opt in explicitly.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/pdfrename/ocr"
)

// Engine recognizes text with a local Tesseract installation. A fresh client
// is created per call; gosseract clients are not safe for reuse across
// failed recognitions.
type Engine struct {
	clientFactory func() *gosseract.Client
}

func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	select {
	case <-ctx.Done():
		return ocr.Result{}, ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	for name, value := range in.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(name), value); err != nil {
			return ocr.Result{}, fmt.Errorf("set variable %s: %w", name, err)
		}
	}
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize: %w", err)
	}
	return ocr.Result{Text: text, PageIndex: in.PageIndex}, nil
}
