package hangul

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestExtractChosung(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "university", in: "서울대학교", want: "ㅅㅇㄷㅎㄱ"},
		{name: "mixed latin prefix", in: "abc가나다", want: "ㄱㄴㄷ"},
		{name: "double consonants", in: "떡볶이", want: "ㄸㅂㅇ"},
		{name: "spaces and digits skipped", in: "짜장면 2인분", want: "ㅉㅈㅁㅇㅂ"},
		{name: "block boundaries", in: "가힣", want: "ㄱㅎ"},
		{name: "empty", in: "", want: ""},
		{name: "bare jamo is not a syllable", in: "ㄱㄴ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractChosung(tt.in))
		})
	}
}

func TestExtractChosung_LengthAndAlphabet(t *testing.T) {
	inputs := []string{"서울대학교", "떡만두국", "김밥", "쌈밥정식", "뷁", "가나다라마바사아자차카타파하"}

	for _, in := range inputs {
		out := ExtractChosung(in)
		assert.Equal(t, utf8.RuneCountInString(in), utf8.RuneCountInString(out), in)
		for _, r := range out {
			assert.True(t, IsChosung(r), "unexpected glyph %q in %q", r, out)
		}
	}
}

func TestMatchesChosung(t *testing.T) {
	assert.True(t, MatchesChosung("ㅅㅇㄷ", "서울대학교"))
	assert.True(t, MatchesChosung("ㄷㅎ", "서울대학교"))
	assert.False(t, MatchesChosung("ㅅㅇㄷㅎㄱㅅ", "서울대학교"))
	assert.False(t, MatchesChosung("ㄱㅅ", "서울대학교"))
}

func TestStartsWithChosung(t *testing.T) {
	assert.True(t, StartsWithChosung("ㄸㅂ", "떡볶이"))
	assert.False(t, StartsWithChosung("ㅂㅇ", "떡볶이"))
	assert.True(t, StartsWithChosung("", "떡볶이"))
}

func TestIsChosungOnly(t *testing.T) {
	assert.True(t, IsChosungOnly("ㄸㅂ"))
	assert.True(t, IsChosungOnly("ㅎ"))
	assert.False(t, IsChosungOnly("ㄸ볶"))
	assert.False(t, IsChosungOnly("ㄸ ㅂ"))
	assert.False(t, IsChosungOnly("ab"))
	assert.False(t, IsChosungOnly(""))
}
