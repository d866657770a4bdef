package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/providers"
)

type memoryBucket struct {
	scores    map[string]float64
	expiresAt time.Time
}

// MemoryRankingCache is a process-local AutocompleteCache for development
// setups without Redis. Ties in TopK are broken by member, descending, to
// match Redis ZREVRANGE.
type MemoryRankingCache struct {
	mu           sync.RWMutex
	buckets      map[string]*memoryBucket
	entities     map[entities.Domain]map[string]*entities.AutocompleteEntity
	prefixLength int
	now          func() time.Time
}

var _ providers.AutocompleteCache = (*MemoryRankingCache)(nil)

// NewMemoryRankingCache creates an empty in-process cache
func NewMemoryRankingCache(prefixLength int) *MemoryRankingCache {
	if prefixLength <= 0 {
		prefixLength = defaultPrefixLength
	}
	return &MemoryRankingCache{
		buckets:      make(map[string]*memoryBucket),
		entities:     make(map[entities.Domain]map[string]*entities.AutocompleteEntity),
		prefixLength: prefixLength,
		now:          time.Now,
	}
}

func (c *MemoryRankingCache) live(bucket string) *memoryBucket {
	b, ok := c.buckets[bucket]
	if !ok {
		return nil
	}
	if !b.expiresAt.IsZero() && !c.now().Before(b.expiresAt) {
		delete(c.buckets, bucket)
		return nil
	}
	return b
}

func (c *MemoryRankingCache) IncrementScore(ctx context.Context, bucket, member string, delta float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.live(bucket)
	if b == nil {
		b = &memoryBucket{scores: make(map[string]float64)}
		c.buckets[bucket] = b
	}
	b.scores[member] += delta
	return nil
}

func (c *MemoryRankingCache) TopK(ctx context.Context, bucket string, k int) ([]entities.RankingEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.live(bucket)
	if b == nil || k <= 0 {
		return []entities.RankingEntry{}, nil
	}
	ranked := sortedEntries(b.scores)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

func (c *MemoryRankingCache) Trim(ctx context.Context, bucket string, maxSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.live(bucket)
	if b == nil {
		return nil
	}
	if maxSize < 0 {
		maxSize = 0
	}
	ranked := sortedEntries(b.scores)
	for i := maxSize; i < len(ranked); i++ {
		delete(b.scores, ranked[i].Member)
	}
	return nil
}

func (c *MemoryRankingCache) Expire(ctx context.Context, bucket string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b := c.live(bucket); b != nil {
		b.expiresAt = c.now().Add(ttl)
	}
	return nil
}

func (c *MemoryRankingCache) ReplaceDomain(ctx context.Context, domain entities.Domain, items []*entities.AutocompleteEntity, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := providers.AutocompletePrefixBucket(domain, "")
	for key := range c.buckets {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.buckets, key)
		}
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	byID := make(map[string]*entities.AutocompleteEntity, len(items))
	for _, item := range items {
		if item == nil || item.ID == "" {
			continue
		}
		copied := *item
		byID[item.ID] = &copied

		score := item.Popularity
		if score < 0 {
			score = 0
		}
		for _, p := range namePrefixes(item.Name, c.prefixLength) {
			key := providers.AutocompletePrefixBucket(domain, p)
			b, ok := c.buckets[key]
			if !ok {
				b = &memoryBucket{scores: make(map[string]float64), expiresAt: expiresAt}
				c.buckets[key] = b
			}
			b.scores[item.ID] = score
		}
	}
	c.entities[domain] = byID
	return nil
}

func (c *MemoryRankingCache) GetEntities(ctx context.Context, domain entities.Domain, ids []string) (map[string]*entities.AutocompleteEntity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	found := make(map[string]*entities.AutocompleteEntity, len(ids))
	cached := c.entities[domain]
	for _, id := range ids {
		if e, ok := cached[id]; ok {
			copied := *e
			found[id] = &copied
		}
	}
	return found, nil
}

func sortedEntries(scores map[string]float64) []entities.RankingEntry {
	ranked := make([]entities.RankingEntry, 0, len(scores))
	for member, score := range scores {
		ranked = append(ranked, entities.RankingEntry{Member: member, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Member > ranked[j].Member
	})
	return ranked
}
