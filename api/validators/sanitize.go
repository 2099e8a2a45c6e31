package validators

import (
	"strings"
	"unicode"
)

// FreeText normalises optional notes: trims, strips control characters other
// than newlines and tabs, and cuts at maxRunes. Blank input becomes nil.
func FreeText(value *string, maxRunes int) *string {
	if value == nil {
		return nil
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, *value)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil
	}
	if maxRunes > 0 {
		if runes := []rune(cleaned); len(runes) > maxRunes {
			cleaned = strings.TrimSpace(string(runes[:maxRunes]))
		}
	}
	return &cleaned
}
