package services

import (
	"context"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/stretchr/testify/mock"
)

// MockEntityRepository is a testify double of EntityRepository
type MockEntityRepository struct {
	mock.Mock
}

func (m *MockEntityRepository) FindByNamePrefix(ctx context.Context, domain entities.Domain, prefix string, limit int) ([]*entities.AutocompleteEntity, error) {
	args := m.Called(ctx, domain, prefix, limit)
	return entityList(args.Get(0)), args.Error(1)
}

func (m *MockEntityRepository) FindByIDs(ctx context.Context, domain entities.Domain, ids []string) ([]*entities.AutocompleteEntity, error) {
	args := m.Called(ctx, domain, ids)
	return entityList(args.Get(0)), args.Error(1)
}

func (m *MockEntityRepository) Count(ctx context.Context, domain entities.Domain) (int, error) {
	args := m.Called(ctx, domain)
	return args.Int(0), args.Error(1)
}

func (m *MockEntityRepository) Page(ctx context.Context, domain entities.Domain, pageNumber, pageSize int) ([]*entities.AutocompleteEntity, error) {
	args := m.Called(ctx, domain, pageNumber, pageSize)
	return entityList(args.Get(0)), args.Error(1)
}

// MockAutocompleteCache is a testify double of AutocompleteCache
type MockAutocompleteCache struct {
	mock.Mock
}

func (m *MockAutocompleteCache) IncrementScore(ctx context.Context, bucket, member string, delta float64) error {
	return m.Called(ctx, bucket, member, delta).Error(0)
}

func (m *MockAutocompleteCache) TopK(ctx context.Context, bucket string, k int) ([]entities.RankingEntry, error) {
	args := m.Called(ctx, bucket, k)
	entries, _ := args.Get(0).([]entities.RankingEntry)
	return entries, args.Error(1)
}

func (m *MockAutocompleteCache) Trim(ctx context.Context, bucket string, maxSize int) error {
	return m.Called(ctx, bucket, maxSize).Error(0)
}

func (m *MockAutocompleteCache) Expire(ctx context.Context, bucket string, ttl time.Duration) error {
	return m.Called(ctx, bucket, ttl).Error(0)
}

func (m *MockAutocompleteCache) ReplaceDomain(ctx context.Context, domain entities.Domain, items []*entities.AutocompleteEntity, ttl time.Duration) error {
	return m.Called(ctx, domain, items, ttl).Error(0)
}

func (m *MockAutocompleteCache) GetEntities(ctx context.Context, domain entities.Domain, ids []string) (map[string]*entities.AutocompleteEntity, error) {
	args := m.Called(ctx, domain, ids)
	found, _ := args.Get(0).(map[string]*entities.AutocompleteEntity)
	return found, args.Error(1)
}

// MockChosungIndex is a testify double of ChosungIndex
type MockChosungIndex struct {
	mock.Mock
}

func (m *MockChosungIndex) Rebuild(ctx context.Context, domain entities.Domain, items []entities.SearchableEntity) error {
	return m.Called(ctx, domain, items).Error(0)
}

func (m *MockChosungIndex) Find(ctx context.Context, domain entities.Domain, query string) ([]string, error) {
	args := m.Called(ctx, domain, query)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

// MockSearchKeywordRepository is a testify double of SearchKeywordRepository
type MockSearchKeywordRepository struct {
	mock.Mock
}

func (m *MockSearchKeywordRepository) Append(ctx context.Context, event *entities.SearchKeywordEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockSearchKeywordRepository) AggregateBetween(ctx context.Context, from, to time.Time, prefixLength int) ([]*entities.SearchKeywordAggregate, error) {
	args := m.Called(ctx, from, to, prefixLength)
	rows, _ := args.Get(0).([]*entities.SearchKeywordAggregate)
	return rows, args.Error(1)
}

func entityList(v interface{}) []*entities.AutocompleteEntity {
	items, _ := v.([]*entities.AutocompleteEntity)
	return items
}

func food(id, name string, popularity float64, primary bool) *entities.AutocompleteEntity {
	attrs := map[string]string{entities.AttrStoreID: "s1"}
	if primary {
		attrs[entities.AttrPrimary] = "true"
	}
	return &entities.AutocompleteEntity{ID: id, Name: name, Popularity: popularity, Attributes: attrs}
}

func names(suggestions []*entities.Suggestion) []string {
	out := make([]string, len(suggestions))
	for i, s := range suggestions {
		out[i] = s.Name
	}
	return out
}
