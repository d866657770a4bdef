package index

import (
	"context"
	"testing"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFoodIndex(t *testing.T) *TrieChosungIndex {
	t.Helper()
	x := NewTrieChosungIndex()
	require.NoError(t, x.Rebuild(context.Background(), entities.DomainFood, []entities.SearchableEntity{
		{ID: "1", Name: "떡볶이"},
		{ID: "2", Name: "떡만두국"},
		{ID: "3", Name: "짜장면"},
		{ID: "4", Name: "치즈떡볶이"},
		{ID: "5", Name: "KFC"},
		{ID: "6", Name: "떡"},
	}))
	return x
}

func TestTrieChosungIndex_Find(t *testing.T) {
	x := buildFoodIndex(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "prefix then inner", query: "ㄸㅂ", want: []string{"1", "4"}},
		{name: "exact first", query: "ㄸ", want: []string{"6", "1", "2", "4"}},
		{name: "full chosung", query: "ㅉㅈㅁ", want: []string{"3"}},
		{name: "inner only", query: "ㅈㅁ", want: []string{"3"}},
		{name: "no match", query: "ㅎㅎ", want: []string{}},
		{name: "longer than any chosung", query: "ㄸㅂㅇㅇ", want: []string{}},
		{name: "empty", query: "", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := x.Find(ctx, entities.DomainFood, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestTrieChosungIndex_SkipsNonHangulAndDuplicates(t *testing.T) {
	x := NewTrieChosungIndex()
	require.NoError(t, x.Rebuild(context.Background(), entities.DomainStore, []entities.SearchableEntity{
		{ID: "s1", Name: "BBQ"},
		{ID: "s2", Name: "교촌치킨"},
		{ID: "s2", Name: "다른이름"},
		{ID: "", Name: "무명"},
	}))

	assert.Equal(t, 1, x.Size(entities.DomainStore))
	ids, err := x.Find(context.Background(), entities.DomainStore, "ㄷㄹ")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestTrieChosungIndex_RebuildReplacesAndDomainsAreDisjoint(t *testing.T) {
	x := buildFoodIndex(t)
	ctx := context.Background()

	require.NoError(t, x.Rebuild(ctx, entities.DomainStore, []entities.SearchableEntity{{ID: "s1", Name: "떡집"}}))
	ids, err := x.Find(ctx, entities.DomainFood, "ㄸㅈ")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, x.Rebuild(ctx, entities.DomainFood, []entities.SearchableEntity{{ID: "9", Name: "짬뽕"}}))
	ids, err = x.Find(ctx, entities.DomainFood, "ㄸ")
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = x.Find(ctx, entities.DomainStore, "ㄸ")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	ids, err = x.Find(ctx, entities.DomainGroup, "ㄸ")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
