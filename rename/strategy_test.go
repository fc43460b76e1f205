package rename_test

import (
	"context"
	"testing"

	"github.com/wudi/pdfrename/rename"
)

func TestMetadataStrategy(t *testing.T) {
	ctx := context.Background()
	s := &rename.MetadataStrategy{}

	ex := openExtractor(t, docPDF("Attention Is All You Need", "body text"))
	title, ok := s.Extract(ctx, ex)
	if !ok || title != "Attention Is All You Need" {
		t.Fatalf("got (%q, %v)", title, ok)
	}

	ex = openExtractor(t, docPDF("Paper Title", "The Actual Work"))
	if title, ok := s.Extract(ctx, ex); ok {
		t.Fatalf("denylisted title accepted: %q", title)
	}

	ex = openExtractor(t, docPDF("DRAFT v3 final", "body"))
	if title, ok := s.Extract(ctx, ex); ok {
		t.Fatalf("case-insensitive denylist miss: %q", title)
	}

	ex = openExtractor(t, docPDF("", "body"))
	if title, ok := s.Extract(ctx, ex); ok {
		t.Fatalf("absent metadata accepted: %q", title)
	}
}

func TestMetadataStrategyCustomDenylist(t *testing.T) {
	s := &rename.MetadataStrategy{Denylist: []string{"internal"}}
	ex := openExtractor(t, docPDF("Internal Memo 2021", "body"))
	if title, ok := s.Extract(context.Background(), ex); ok {
		t.Fatalf("custom denylist miss: %q", title)
	}

	// The defaults no longer apply once a custom list is set.
	ex = openExtractor(t, docPDF("Draft Genome Assembly", "body"))
	title, ok := s.Extract(context.Background(), ex)
	if !ok || title != "Draft Genome Assembly" {
		t.Fatalf("got (%q, %v)", title, ok)
	}
}

func TestFirstTextStrategy(t *testing.T) {
	ctx := context.Background()
	s := &rename.FirstTextStrategy{}

	// Four-character lines and bare years are passed over.
	ex := openExtractor(t, docPDF("", "abcd", "2019", "Gradient Methods at Scale", "Second line"))
	title, ok := s.Extract(ctx, ex)
	if !ok || title != "Gradient Methods at Scale" {
		t.Fatalf("got (%q, %v)", title, ok)
	}

	ex = openExtractor(t, docPDF("", "abcd", "2019"))
	if title, ok := s.Extract(ctx, ex); ok {
		t.Fatalf("rejected lines accepted: %q", title)
	}
}

func TestFirstTextStrategyDegenerateLineShortCircuits(t *testing.T) {
	// A line that cleans down to nothing normalizes to the Untitled
	// fallback, which satisfies the predicate and wins over later lines.
	ex := openExtractor(t, docPDF("", "ab", "Real Title Here"))
	s := &rename.FirstTextStrategy{}
	title, ok := s.Extract(context.Background(), ex)
	if !ok || title != rename.Untitled {
		t.Fatalf("got (%q, %v), want (%q, true)", title, ok, rename.Untitled)
	}
}

func TestRegexStrategy(t *testing.T) {
	ctx := context.Background()
	s := &rename.RegexStrategy{}

	// The % survives normalization but fails the stricter shape, so the
	// next line wins.
	ex := openExtractor(t, docPDF("", "100% of samples", "A Stricter Candidate"))
	title, ok := s.Extract(ctx, ex)
	if !ok || title != "A Stricter Candidate" {
		t.Fatalf("got (%q, %v)", title, ok)
	}

	ex = openExtractor(t, docPDF("", "50% / 50%"))
	if title, ok := s.Extract(ctx, ex); ok {
		t.Fatalf("shape violation accepted: %q", title)
	}
}

func TestSelectorPriorityAndFallback(t *testing.T) {
	ctx := context.Background()
	sel := &rename.Selector{Strategies: []rename.Strategy{
		&rename.MetadataStrategy{},
		&rename.FirstTextStrategy{},
		&rename.RegexStrategy{},
	}}

	// Metadata outranks page text.
	ex := openExtractor(t, docPDF("Metadata Wins", "Body Text Line Here"))
	if got := sel.Select(ctx, ex, "stem"); got != "Metadata Wins" {
		t.Fatalf("got %q", got)
	}

	// Denylisted metadata falls through to first-page text.
	ex = openExtractor(t, docPDF("Paper Title", "Recovered From The Body"))
	if got := sel.Select(ctx, ex, "stem"); got != "Recovered From The Body" {
		t.Fatalf("got %q", got)
	}

	// A degenerate line yields the Untitled fallback, which wins here and
	// makes the runner keep the file's name.
	ex = openExtractor(t, docPDF("", "ab"))
	if got := sel.Select(ctx, ex, "my-file"); got != rename.Untitled {
		t.Fatalf("got %q", got)
	}

	// Lines rejected by every predicate fall through to the stem.
	ex = openExtractor(t, docPDF("", "abcd"))
	if got := sel.Select(ctx, ex, "my-file"); got != "my-file" {
		t.Fatalf("got %q", got)
	}

	// Unopenable document (nil extractor) keeps the stem.
	if got := sel.Select(ctx, nil, "broken"); got != "broken" {
		t.Fatalf("got %q", got)
	}
}
