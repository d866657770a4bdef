package hangul

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizeKeyword composes decomposed jamo (NFC), collapses whitespace and
// lower-cases the keyword. Blank input yields "".
func NormalizeKeyword(keyword string) string {
	composed := norm.NFC.String(keyword)
	return strings.ToLower(strings.Join(strings.Fields(composed), " "))
}

// Prefix returns the first n runes of s, or s itself when it is shorter.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Length counts runes, which is what every length rule in the ranker uses.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
