package rename

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/wudi/pdfrename/extractor"
	"github.com/wudi/pdfrename/observability"
	"github.com/wudi/pdfrename/ocr"
)

// OCRStrategy recognizes text in scanned pages whose content streams carry
// no text operators. It rasters each leading page's dominant image XObject,
// preprocesses it, and applies the first-text line predicate to the
// recognized text. Recognition failures degrade to no-title.
type OCRStrategy struct {
	Engine    ocr.Engine
	Languages []string
	Log       observability.Logger
}

func (s *OCRStrategy) Name() string { return "ocr" }

func (s *OCRStrategy) Extract(ctx context.Context, ex *extractor.Extractor) (string, bool) {
	log := s.Log
	if log == nil {
		log = observability.NopLogger{}
	}
	if s.Engine == nil {
		return "", false
	}

	n, err := ex.PageCount(ctx)
	if err != nil {
		log.Warn("page count failed", observability.Error("err", err))
		return "", false
	}
	if n > maxScanPages {
		n = maxScanPages
	}

	for i := 0; i < n; i++ {
		img, err := ex.PageImage(ctx, i)
		if err != nil {
			if !errors.Is(err, extractor.ErrNoPageImage) {
				log.Warn("page raster failed",
					observability.Int("page", i), observability.Error("err", err))
			}
			continue
		}
		in, err := ocr.Prepare(img, i)
		if err != nil {
			log.Warn("raster preprocessing failed",
				observability.Int("page", i), observability.Error("err", err))
			continue
		}
		in.Languages = s.Languages
		res, err := s.Engine.Recognize(ctx, in)
		if err != nil {
			log.Warn("recognition failed",
				observability.Int("page", i), observability.Error("err", err))
			continue
		}
		for _, line := range strings.Split(res.Text, "\n") {
			cleaned := Normalize(line)
			if utf8.RuneCountInString(cleaned) > 4 && !yearOnly.MatchString(cleaned) {
				return cleaned, true
			}
		}
	}
	return "", false
}
