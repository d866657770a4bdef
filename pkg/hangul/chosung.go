// Package hangul provides the text matching primitives used by autocomplete:
// initial-consonant (chosung) extraction and matching, edit distance and
// keyword normalization.
package hangul

import "strings"

const (
	syllableBase  = 0xAC00
	syllableLast  = 0xD7A3
	medialCount   = 21
	finalCount    = 28
	syllableBlock = medialCount * finalCount
)

// initialConsonants is indexed by (syllable - syllableBase) / syllableBlock.
var initialConsonants = [19]rune{
	'ㄱ', 'ㄲ', 'ㄴ', 'ㄷ', 'ㄸ', 'ㄹ', 'ㅁ', 'ㅂ', 'ㅃ', 'ㅅ',
	'ㅆ', 'ㅇ', 'ㅈ', 'ㅉ', 'ㅊ', 'ㅋ', 'ㅌ', 'ㅍ', 'ㅎ',
}

var chosungSet = func() map[rune]struct{} {
	set := make(map[rune]struct{}, len(initialConsonants))
	for _, r := range initialConsonants {
		set[r] = struct{}{}
	}
	return set
}()

// IsSyllable reports whether r is a precomposed Hangul syllable.
func IsSyllable(r rune) bool {
	return r >= syllableBase && r <= syllableLast
}

// IsChosung reports whether r is one of the 19 initial-consonant glyphs.
func IsChosung(r rune) bool {
	_, ok := chosungSet[r]
	return ok
}

// ExtractChosung returns the initial consonant of every Hangul syllable in
// text. Characters outside the syllable block are skipped.
func ExtractChosung(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if !IsSyllable(r) {
			continue
		}
		b.WriteRune(initialConsonants[(r-syllableBase)/syllableBlock])
	}
	return b.String()
}

// MatchesChosung reports whether the chosung of target contains query.
func MatchesChosung(query, target string) bool {
	return strings.Contains(ExtractChosung(target), query)
}

// StartsWithChosung reports whether the chosung of target starts with query.
func StartsWithChosung(query, target string) bool {
	return strings.HasPrefix(ExtractChosung(target), query)
}

// IsChosungOnly reports whether text is non-empty and made only of
// initial-consonant glyphs.
func IsChosungOnly(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if !IsChosung(r) {
			return false
		}
	}
	return true
}
