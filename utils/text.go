package utils

import (
	"strings"
	"unicode"
)

// NormalizeText collapses every whitespace run (ideographic space included) into
// a single space, trims the ends and truncates to max runes. max <= 0 disables the cap.
func NormalizeText(s string, max int) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	out := b.String()
	if max > 0 {
		out = TruncateRunes(out, max)
	}
	return out
}

// TruncateRunes cuts s to at most n runes without splitting a rune
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
