package util

import (
	"strings"
	"unicode"
)

const maxIdentifierLength = 128

// ValidIdentifier reports whether s is usable as an opaque user identifier:
// non-empty after trimming, bounded, and free of control characters.
func ValidIdentifier(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxIdentifierLength {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// NormalizeIdentifier trims surrounding whitespace from an identifier.
func NormalizeIdentifier(s string) string {
	return strings.TrimSpace(s)
}
