package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCache struct {
	*MemoryRankingCache
	calls int
	err   error
}

func (f *failingCache) TopK(ctx context.Context, bucket string, k int) ([]entities.RankingEntry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.MemoryRankingCache.TopK(ctx, bucket, k)
}

func TestBreakerRankingCache_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingCache{MemoryRankingCache: NewMemoryRankingCache(8), err: errors.New("i/o timeout")}
	b := NewBreakerRankingCache(inner, BreakerSettings{
		Name:                "test",
		ConsecutiveFailures: 3,
		OpenTimeout:         time.Minute,
	})

	for i := 0; i < 3; i++ {
		_, err := b.TopK(context.Background(), "bucket", 5)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.TopK(context.Background(), "bucket", 5)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerRankingCache_PassesThrough(t *testing.T) {
	ctx := context.Background()
	inner := &failingCache{MemoryRankingCache: NewMemoryRankingCache(8)}
	b := NewBreakerRankingCache(inner, DefaultBreakerSettings())

	require.NoError(t, b.IncrementScore(ctx, "bucket", "김밥", 2))
	top, err := b.TopK(ctx, "bucket", 5)
	require.NoError(t, err)
	assert.Equal(t, []entities.RankingEntry{{Member: "김밥", Score: 2}}, top)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
