package hangul

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKeyword(t *testing.T) {
	assert.Equal(t, "떡볶이", NormalizeKeyword("  떡볶이 "))
	assert.Equal(t, "chicken 치킨", NormalizeKeyword("Chicken \t 치킨"))
	assert.Equal(t, "", NormalizeKeyword(" \n\t "))
	// U+1100 U+1161 is the decomposed form of 가.
	assert.Equal(t, "가", NormalizeKeyword("\u1100\u1161"))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "떡볶", Prefix("떡볶이", 2))
	assert.Equal(t, "떡", Prefix("떡", 2))
	assert.Equal(t, "", Prefix("떡볶이", 0))
	assert.Equal(t, "ab", Prefix("abc", 2))
	assert.Equal(t, 3, Length("떡볶이"))
}
