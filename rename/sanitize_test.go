package rename

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeReservedChars(t *testing.T) {
	got := Sanitize(`a<b>c:d"e/f\g|h?i*j`, 0)
	want := "a_b_c_d_e_f_g_h_i_j"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if strings.ContainsAny(got, `<>:"/\|?*`) {
		t.Fatalf("reserved character survived: %q", got)
	}
}

func TestSanitizeShortTitleUnchanged(t *testing.T) {
	if got := Sanitize("A Clean Title", 100); got != "A Clean Title" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeTruncatesAtWordBoundary(t *testing.T) {
	title := strings.Repeat("word ", 40) // 200 chars
	got := Sanitize(title, 100)

	if utf8.RuneCountInString(got) > 100 {
		t.Fatalf("length %d exceeds max", utf8.RuneCountInString(got))
	}
	if strings.HasSuffix(got, " ") {
		t.Fatalf("trailing space survived: %q", got)
	}
	// Every kept token is a whole word.
	for _, w := range strings.Fields(got) {
		if w != "word" {
			t.Fatalf("word cut mid-way: %q", w)
		}
	}
}

func TestSanitizeLongWordDropsCleanly(t *testing.T) {
	title := "short " + strings.Repeat("x", 150)
	got := Sanitize(title, 100)
	if got != "short" {
		t.Fatalf("got %q, want %q", got, "short")
	}
}
