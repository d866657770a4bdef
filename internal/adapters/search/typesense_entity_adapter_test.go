package search

import (
	"testing"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/stretchr/testify/assert"
)

func TestEntityDocumentRoundTrip(t *testing.T) {
	item := &entities.AutocompleteEntity{
		ID:         "1",
		Name:       "떡볶이",
		Popularity: 42,
		Attributes: map[string]string{
			entities.AttrPrimary: "true",
			entities.AttrStoreID: "s1",
		},
	}

	doc := EntityDocument(item, 7, 1700000000)
	assert.Equal(t, int64(7), doc["seq"])
	assert.Equal(t, int64(1700000000), doc["generation"])
	assert.Equal(t, true, doc["primary"])
	assert.NotContains(t, doc, "category_id")

	// Typesense returns numbers as float64
	doc["seq"] = float64(7)
	back := documentToEntity(doc)
	assert.Equal(t, item, back)
}

func TestDocumentToEntityToleratesMissingFields(t *testing.T) {
	item := documentToEntity(map[string]interface{}{"id": "s1", "name": "교촌치킨"})
	assert.Equal(t, "s1", item.ID)
	assert.Equal(t, 0.0, item.Popularity)
	assert.Nil(t, item.Attributes)
}

func TestStaleFilterTargetsOlderGenerations(t *testing.T) {
	assert.Equal(t, "generation:<1700000000", staleFilter(1700000000))
}

func TestIDFilter(t *testing.T) {
	assert.Equal(t, "id:[`a`,`b`]", idFilter([]string{"a", "b"}))
	assert.Equal(t, "id:[`xy`]", idFilter([]string{"x`y"}))
}

func TestSubPageSize(t *testing.T) {
	tests := map[int]int{
		1:    1,
		100:  100,
		250:  250,
		500:  250,
		300:  150,
		1000: 250,
		257:  1,
	}
	for pageSize, want := range tests {
		assert.Equal(t, want, subPageSize(pageSize), "pageSize=%d", pageSize)
	}
}
