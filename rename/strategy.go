package rename

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/wudi/pdfrename/extractor"
	"github.com/wudi/pdfrename/observability"
)

// maxScanPages bounds how deep the text strategies look for a title line.
const maxScanPages = 3

// Strategy attempts to derive a title from one open document. A false second
// return means "no title found"; strategies never return errors, they log
// and degrade.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, ex *extractor.Extractor) (string, bool)
}

// DefaultDenylist lists title substrings that mark a metadata title as
// placeholder noise. Matching is case-insensitive.
var DefaultDenylist = []string{"paper title", "draft", "untitled"}

// MetadataStrategy reads the Info dictionary's /Title.
type MetadataStrategy struct {
	// Denylist overrides DefaultDenylist when non-nil.
	Denylist []string
	Log      observability.Logger
}

func (s *MetadataStrategy) Name() string { return "metadata" }

func (s *MetadataStrategy) Extract(ctx context.Context, ex *extractor.Extractor) (string, bool) {
	md, err := ex.Metadata(ctx)
	if err != nil {
		s.logger().Warn("metadata read failed", observability.Error("err", err))
		return "", false
	}
	if md.Title == "" {
		return "", false
	}
	denylist := s.Denylist
	if denylist == nil {
		denylist = DefaultDenylist
	}
	lower := strings.ToLower(md.Title)
	for _, phrase := range denylist {
		if strings.Contains(lower, phrase) {
			s.logger().Debug("metadata title denylisted",
				observability.String("title", md.Title),
				observability.String("phrase", phrase))
			return "", false
		}
	}
	return Normalize(md.Title), true
}

func (s *MetadataStrategy) logger() observability.Logger {
	if s.Log == nil {
		return observability.NopLogger{}
	}
	return s.Log
}

var yearOnly = regexp.MustCompile(`^\d{4}$`)

// FirstTextStrategy scans the leading pages for the first line whose
// normalized form is longer than 4 characters and is not a bare four-digit
// year.
type FirstTextStrategy struct {
	Log observability.Logger
}

func (s *FirstTextStrategy) Name() string { return "first-text" }

func (s *FirstTextStrategy) Extract(ctx context.Context, ex *extractor.Extractor) (string, bool) {
	return scanPageLines(ctx, ex, s.Log, func(line string) bool {
		return utf8.RuneCountInString(line) > 4 && !yearOnly.MatchString(line)
	})
}

// titleShape is the stricter line predicate: printable ASCII letters, digits,
// whitespace and light punctuation only.
var titleShape = regexp.MustCompile(`^[A-Za-z0-9\s\-_&,:;.!?()]+$`)

// RegexStrategy scans the leading pages for the first line that entirely
// matches titleShape with normalized length over 5.
type RegexStrategy struct {
	Log observability.Logger
}

func (s *RegexStrategy) Name() string { return "regex" }

func (s *RegexStrategy) Extract(ctx context.Context, ex *extractor.Extractor) (string, bool) {
	return scanPageLines(ctx, ex, s.Log, func(line string) bool {
		return utf8.RuneCountInString(line) > 5 && titleShape.MatchString(line)
	})
}

// scanPageLines walks up to maxScanPages pages in order, normalizes each
// line, and returns the first one accept admits. Page-level extraction
// failures are logged and skipped.
func scanPageLines(ctx context.Context, ex *extractor.Extractor, log observability.Logger, accept func(string) bool) (string, bool) {
	if log == nil {
		log = observability.NopLogger{}
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
		text, err := ex.PageText(ctx, i)
		if err != nil {
			log.Warn("text extraction failed",
				observability.Int("page", i), observability.Error("err", err))
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			// A degenerate line normalizes to the Untitled fallback, which
			// passes the predicates and short-circuits the scan; the runner
			// then keeps the file's name.
			cleaned := Normalize(line)
			if accept(cleaned) {
				return cleaned, true
			}
		}
	}
	return "", false
}

// Selector runs strategies in priority order and falls back to stem when
// none yields a title.
type Selector struct {
	Strategies []Strategy
	Log        observability.Logger
}

// Select returns the first strategy hit, or stem when every strategy
// declines or the document could not be opened (ex == nil).
func (s *Selector) Select(ctx context.Context, ex *extractor.Extractor, stem string) string {
	log := s.Log
	if log == nil {
		log = observability.NopLogger{}
	}
	if ex != nil {
		for _, strat := range s.Strategies {
			if title, ok := strat.Extract(ctx, ex); ok {
				log.Debug("title selected",
					observability.String("strategy", strat.Name()),
					observability.String("title", title))
				return title
			}
			log.Debug("strategy declined", observability.String("strategy", strat.Name()))
		}
	}
	return stem
}
