package cache

import (
	"context"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/providers"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures when the cache circuit opens
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	Interval            time.Duration
}

// DefaultBreakerSettings opens after 5 consecutive failures for 10 seconds
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "autocomplete-cache",
		ConsecutiveFailures: 5,
		OpenTimeout:         10 * time.Second,
		Interval:            30 * time.Second,
	}
}

// BreakerRankingCache short-circuits calls to an unhealthy cache so queries
// fall through to later stages without paying the cache timeout each time.
type BreakerRankingCache struct {
	next    providers.AutocompleteCache
	breaker *gobreaker.CircuitBreaker
}

var _ providers.AutocompleteCache = (*BreakerRankingCache)(nil)

// NewBreakerRankingCache wraps next with a circuit breaker
func NewBreakerRankingCache(next providers.AutocompleteCache, settings BreakerSettings) *BreakerRankingCache {
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return &BreakerRankingCache{
		next: next,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        settings.Name,
			MaxRequests: 1,
			Interval:    settings.Interval,
			Timeout:     settings.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Cache circuit breaker changed state")
			},
		}),
	}
}

// State exposes the breaker state
func (b *BreakerRankingCache) State() gobreaker.State {
	return b.breaker.State()
}

func (b *BreakerRankingCache) IncrementScore(ctx context.Context, bucket, member string, delta float64) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.IncrementScore(ctx, bucket, member, delta)
	})
	return err
}

func (b *BreakerRankingCache) TopK(ctx context.Context, bucket string, k int) ([]entities.RankingEntry, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.TopK(ctx, bucket, k)
	})
	if err != nil {
		return nil, err
	}
	return result.([]entities.RankingEntry), nil
}

func (b *BreakerRankingCache) Trim(ctx context.Context, bucket string, maxSize int) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Trim(ctx, bucket, maxSize)
	})
	return err
}

func (b *BreakerRankingCache) Expire(ctx context.Context, bucket string, ttl time.Duration) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Expire(ctx, bucket, ttl)
	})
	return err
}

// ReplaceDomain bypasses the breaker: a warm must report the real error.
func (b *BreakerRankingCache) ReplaceDomain(ctx context.Context, domain entities.Domain, items []*entities.AutocompleteEntity, ttl time.Duration) error {
	return b.next.ReplaceDomain(ctx, domain, items, ttl)
}

func (b *BreakerRankingCache) GetEntities(ctx context.Context, domain entities.Domain, ids []string) (map[string]*entities.AutocompleteEntity, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.GetEntities(ctx, domain, ids)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]*entities.AutocompleteEntity), nil
}
