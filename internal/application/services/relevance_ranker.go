package services

import (
	"strings"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/pkg/hangul"
)

// Relevance bases and bounds
const (
	CompleteMatchBase = 10000
	PartialMatchBase  = 5000
	MaxLengthBonus    = 1000
	lengthPenalty     = 100
	MaxRelevance      = CompleteMatchBase + MaxLengthBonus + int(entities.MaxPopularity)
)

// Relevance scores target against keyword: a contiguous case-insensitive
// match earns the complete base plus the length bonus plus the clamped
// popularity. No match scores 0.
func Relevance(keyword, target string, popularity float64) int {
	if !contains(target, keyword) {
		return 0
	}
	return score(CompleteMatchBase, keyword, target, popularity)
}

// PartialRelevance scores a target the caller already accepted as a loose
// match (e.g. within typo distance) on the partial base.
func PartialRelevance(keyword, target string, popularity float64) int {
	return score(PartialMatchBase, keyword, target, popularity)
}

// NormalizedRelevance maps Relevance onto [0, 1]
func NormalizedRelevance(keyword, target string, popularity float64) float64 {
	return float64(Relevance(keyword, target, popularity)) / float64(MaxRelevance)
}

// LengthBonus rewards targets close in length to the keyword
func LengthBonus(keyword, target string) int {
	bonus := MaxLengthBonus - lengthPenalty*(hangul.Length(target)-hangul.Length(keyword))
	return max(0, min(bonus, MaxLengthBonus))
}

// ClampPopularity bounds popularity to [0, MaxPopularity]
func ClampPopularity(popularity float64) float64 {
	return max(0, min(popularity, entities.MaxPopularity))
}

func score(base int, keyword, target string, popularity float64) int {
	return base + LengthBonus(keyword, target) + int(ClampPopularity(popularity))
}

func contains(target, keyword string) bool {
	return strings.Contains(strings.ToLower(target), strings.ToLower(keyword))
}
