package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CleanText prepares free text (refund reasons, review notes) for storage:
// surrounding space is trimmed, invalid UTF-8 and control characters other
// than newlines and tabs are dropped, and the result is capped at maxRunes.
func CleanText(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == utf8.RuneError || unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	cleaned = strings.TrimSpace(cleaned)
	if maxRunes <= 0 || utf8.RuneCountInString(cleaned) <= maxRunes {
		return cleaned
	}

	n := 0
	for i := range cleaned {
		if n == maxRunes {
			return strings.TrimRightFunc(cleaned[:i], unicode.IsSpace)
		}
		n++
	}
	return cleaned
}
