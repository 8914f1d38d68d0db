package util

import (
	"strings"
	"unicode/utf8"
)

// TruncateString truncates a string to maxRunes characters (rune-based, not byte-based)
// If truncated, appends "..." to the result
func TruncateString(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// ClipRunes cuts s to at most maxRunes runes without a marker.
func ClipRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}

func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// IsBlank reports whether s has no visible characters.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
