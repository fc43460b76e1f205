package rename

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxFilename bounds generated base names. Well under every common
// filesystem's 255-byte component limit to leave room for suffixes.
const DefaultMaxFilename = 100

var reservedChars = strings.NewReplacer(
	"<", "_",
	">", "_",
	":", "_",
	`"`, "_",
	"/", "_",
	`\`, "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// Sanitize makes a title safe to use as a filename: reserved characters
// become underscores, and a title longer than maxLen is rebuilt word by
// word so it never ends mid-word. maxLen <= 0 means DefaultMaxFilename.
func Sanitize(title string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxFilename
	}
	title = reservedChars.Replace(title)
	if utf8.RuneCountInString(title) <= maxLen {
		return title
	}

	var b strings.Builder
	length := 0
	for _, word := range strings.Fields(title) {
		n := utf8.RuneCountInString(word)
		if length+n+1 > maxLen {
			break
		}
		b.WriteString(word)
		b.WriteString(" ")
		length += n + 1
	}
	return strings.TrimSpace(b.String())
}
