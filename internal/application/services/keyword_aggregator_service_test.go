package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ddeok-labs/search-backend/internal/adapters/cache"
	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func countingConfig() KeywordAggregatorConfig {
	cfg := DefaultKeywordAggregatorConfig()
	cfg.SearchWeight = 1
	cfg.ClickWeight = 0
	return cfg
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type failingBucketCache struct {
	*cache.MemoryRankingCache
	bucket string
}

func (c *failingBucketCache) IncrementScore(ctx context.Context, bucket, member string, delta float64) error {
	if bucket == c.bucket {
		return errors.New("connection reset")
	}
	return c.MemoryRankingCache.IncrementScore(ctx, bucket, member, delta)
}

func TestKeywordAggregator_TrendingOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 5, 30, 0, time.UTC)
	repo := new(MockSearchKeywordRepository)
	repo.On("AggregateBetween", mock.Anything, now.Add(-10*time.Minute), now.Truncate(time.Minute), 2).
		Return([]*entities.SearchKeywordAggregate{
			{Domain: entities.DomainFood, Prefix: "김밥", Keyword: "김밥", SearchCount: 1},
			{Domain: entities.DomainFood, Prefix: "떡볶", Keyword: "떡볶이", SearchCount: 3},
			{Domain: entities.DomainFood, Prefix: "짜장", Keyword: "짜장면", SearchCount: 2},
			{Domain: entities.DomainFood, Prefix: "짜장", Keyword: "짜장면", SearchCount: 0, ClickCount: 4},
		}, nil).Once()

	rc := cache.NewMemoryRankingCache(2)
	agg := NewKeywordAggregator(repo, rc, countingConfig(), WithClock(fixedClock(now)))

	result, err := agg.AggregateRecentEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Rows)
	assert.Equal(t, 4, result.Buckets)
	assert.Equal(t, now.Truncate(time.Minute), agg.Watermark())

	trending := agg.GetTrendingKeywords(context.Background(), entities.DomainFood, 10)
	assert.Equal(t, []entities.TrendingKeyword{
		{Keyword: "떡볶이", Score: 3},
		{Keyword: "짜장면", Score: 2},
		{Keyword: "김밥", Score: 1},
	}, trending)
	assert.Empty(t, agg.GetTrendingKeywords(context.Background(), entities.DomainStore, 10))
	repo.AssertExpectations(t)
}

func TestKeywordAggregator_WatermarkNeverPassesNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 5, 30, 0, time.UTC)
	minute := now.Truncate(time.Minute)
	repo := new(MockSearchKeywordRepository)
	repo.On("AggregateBetween", mock.Anything, minute, now, 2).
		Return([]*entities.SearchKeywordAggregate{}, nil).Once()

	agg := NewKeywordAggregator(repo, cache.NewMemoryRankingCache(2), countingConfig(),
		WithClock(fixedClock(now)), WithWatermark(minute))

	result, err := agg.AggregateRecentEvents(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, now, agg.Watermark())

	result, err = agg.AggregateRecentEvents(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, now, agg.Watermark())

	repo.AssertNumberOfCalls(t, "AggregateBetween", 1)
}

func TestKeywordAggregator_ConsecutiveWindowsAreContiguous(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	repo := new(MockSearchKeywordRepository)
	repo.On("AggregateBetween", mock.Anything, mock.Anything, mock.Anything, 2).
		Return([]*entities.SearchKeywordAggregate{}, nil)

	agg := NewKeywordAggregator(repo, cache.NewMemoryRankingCache(2), countingConfig(),
		WithClock(func() time.Time { return clock }))

	first, err := agg.AggregateRecentEvents(context.Background())
	require.NoError(t, err)

	clock = clock.Add(3 * time.Minute)
	second, err := agg.AggregateRecentEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.To, second.From)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 3, 0, 0, time.UTC), second.To)
}

func TestKeywordAggregator_PartialFailureKeepsWatermark(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 5, 30, 0, time.UTC)
	start := now.Add(-30 * time.Minute).Truncate(time.Minute)
	repo := new(MockSearchKeywordRepository)
	repo.On("AggregateBetween", mock.Anything, start, now.Truncate(time.Minute), 2).
		Return([]*entities.SearchKeywordAggregate{
			{Domain: entities.DomainFood, Prefix: "떡볶", Keyword: "떡볶이", SearchCount: 3},
			{Domain: entities.DomainFood, Prefix: "짜장", Keyword: "짜장면", SearchCount: 2},
		}, nil)

	rc := &failingBucketCache{
		MemoryRankingCache: cache.NewMemoryRankingCache(2),
		bucket:             providers.KeywordPrefixBucket(entities.DomainFood, "짜장"),
	}
	agg := NewKeywordAggregator(repo, rc, countingConfig(),
		WithClock(fixedClock(now)), WithWatermark(start))

	_, err := agg.AggregateRecentEvents(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "짜장")
	assert.Equal(t, start, agg.Watermark())
}

func TestKeywordAggregator_RepositoryError(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 5, 30, 0, time.UTC)
	repo := new(MockSearchKeywordRepository)
	repo.On("AggregateBetween", mock.Anything, mock.Anything, mock.Anything, 2).
		Return(nil, errors.New("db down"))

	agg := NewKeywordAggregator(repo, cache.NewMemoryRankingCache(2), countingConfig(), WithClock(fixedClock(now)))

	_, err := agg.AggregateRecentEvents(context.Background())
	require.Error(t, err)
	assert.True(t, agg.Watermark().IsZero())
}

func TestKeywordAggregator_OverlappingRunRejected(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 5, 30, 0, time.UTC)
	started := make(chan struct{})
	release := make(chan struct{})
	repo := new(MockSearchKeywordRepository)
	repo.On("AggregateBetween", mock.Anything, mock.Anything, mock.Anything, 2).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]*entities.SearchKeywordAggregate{}, nil).Once()

	agg := NewKeywordAggregator(repo, cache.NewMemoryRankingCache(2), countingConfig(), WithClock(fixedClock(now)))

	done := make(chan error, 1)
	go func() {
		_, err := agg.AggregateRecentEvents(context.Background())
		done <- err
	}()
	<-started

	_, err := agg.AggregateRecentEvents(context.Background())
	assert.ErrorIs(t, err, ErrAggregationInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestKeywordAggregator_PopularKeywordsByPrefix(t *testing.T) {
	rc := cache.NewMemoryRankingCache(2)
	ctx := context.Background()
	bucket := providers.KeywordPrefixBucket(entities.DomainFood, "떡볶")
	require.NoError(t, rc.IncrementScore(ctx, bucket, "떡볶이", 5))
	require.NoError(t, rc.IncrementScore(ctx, bucket, "떡볶이세트", 3))
	require.NoError(t, rc.IncrementScore(ctx, bucket, "떡볶기", 1))

	agg := NewKeywordAggregator(new(MockSearchKeywordRepository), rc, countingConfig())

	assert.Equal(t, []entities.TrendingKeyword{{Keyword: "떡볶이", Score: 5}, {Keyword: "떡볶이세트", Score: 3}},
		agg.GetPopularKeywords(ctx, entities.DomainFood, "떡볶이", 5))
	assert.Len(t, agg.GetPopularKeywords(ctx, entities.DomainFood, "떡볶", 2), 2)
	assert.Empty(t, agg.GetPopularKeywords(ctx, entities.DomainFood, "  ", 5))
}

func TestKeywordAggregator_CacheErrorDegradesToEmpty(t *testing.T) {
	mc := new(MockAutocompleteCache)
	mc.On("TopK", mock.Anything, providers.TrendingBucket(entities.DomainFood), 5).Return(nil, errors.New("timeout"))

	agg := NewKeywordAggregator(new(MockSearchKeywordRepository), mc, countingConfig())
	assert.Empty(t, agg.GetTrendingKeywords(context.Background(), entities.DomainFood, 5))
}
