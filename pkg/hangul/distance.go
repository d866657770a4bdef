package hangul

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// EditDistance is the unit-cost Levenshtein distance between a and b,
// counted in runes. The empty string is a valid base of length zero.
func EditDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// MatchesWithTypoTolerance reports whether target contains query, or
// otherwise lies within maxDistance edits of it.
func MatchesWithTypoTolerance(query, target string, maxDistance int) bool {
	if strings.Contains(target, query) {
		return true
	}
	return EditDistance(query, target) <= maxDistance
}
