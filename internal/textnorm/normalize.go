// Package textnorm normalizes text for case and accent insensitive matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// Normalize prepares a string for comparison (lowercase, no diacritics,
// collapsed whitespace).
func Normalize(s string) string {
	s = RemoveDiacritics(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// Contains reports whether haystack contains needle after normalization.
// The needle is expected to be already normalized.
func Contains(haystack, needle string) bool {
	return strings.Contains(Normalize(haystack), needle)
}
