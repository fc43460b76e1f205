// Package rename derives human-readable titles from PDF documents and
// renames the files accordingly: normalize, select a title through a
// strategy chain, sanitize it for the filesystem, and resolve collisions
// with a run-scoped counter table.
package rename

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Untitled is the normalizer's result for input that cleans down to nothing
// useful. The runner treats it as "do not rename".
const Untitled = "Untitled"

// disallowed matches every rune outside the filename-safe classes: word
// characters, whitespace, and - . , : ; ( ) & % / | +
var disallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.,:;()&%/|+]`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize cleans raw extracted text into title form: NFKD decomposition,
// strip runes outside the allowed classes, collapse whitespace runs to a
// single space, trim. Input that cleans to 3 or fewer characters yields
// Untitled. Never fails.
func Normalize(text string) string {
	if text == "" {
		return Untitled
	}
	s := strings.TrimSpace(norm.NFKD.String(text))
	s = disallowed.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	if utf8.RuneCountInString(s) <= 3 {
		return Untitled
	}
	return s
}
