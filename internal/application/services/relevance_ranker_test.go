package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelevance(t *testing.T) {
	tests := []struct {
		name       string
		keyword    string
		target     string
		popularity float64
		want       int
	}{
		{name: "exact", keyword: "떡볶이", target: "떡볶이", popularity: 0, want: 11000},
		{name: "contained with popularity", keyword: "떡", target: "떡볶이", popularity: 100, want: 10900},
		{name: "inner match", keyword: "볶이", target: "치즈떡볶이", popularity: 0, want: 10700},
		{name: "case insensitive", keyword: "kfc", target: "KFC 강남점", popularity: 0, want: 10600},
		{name: "long target loses bonus", keyword: "a", target: "a very long name here", popularity: 0, want: 10000},
		{name: "popularity clamped high", keyword: "김밥", target: "김밥", popularity: 5000, want: 12000},
		{name: "popularity clamped low", keyword: "김밥", target: "김밥", popularity: -20, want: 11000},
		{name: "no match", keyword: "짜장", target: "떡볶이", popularity: 900, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Relevance(tt.keyword, tt.target, tt.popularity))
		})
	}
}

func TestPartialRelevance(t *testing.T) {
	assert.Equal(t, 6000, PartialRelevance("김치찌게", "김치찌개", 0))
	assert.Equal(t, 6950, PartialRelevance("떡복이", "떡볶이", 950))
	assert.Equal(t, 5800, PartialRelevance("김치", "김치찌개", 0))
}

func TestLengthBonusIsCapped(t *testing.T) {
	assert.Equal(t, MaxLengthBonus, LengthBonus("서울대학교", "서울"))
	assert.Equal(t, 800, LengthBonus("서울", "서울대학"))
	assert.Equal(t, 0, LengthBonus("a", "abcdefghijklmnop"))
}

func TestNormalizedRelevance(t *testing.T) {
	assert.Equal(t, 1.0, NormalizedRelevance("김밥", "김밥", 1000))
	assert.Equal(t, 0.0, NormalizedRelevance("김밥", "라면", 1000))
	assert.InDelta(t, 11000.0/12000.0, NormalizedRelevance("김밥", "김밥", 0), 1e-9)
}
