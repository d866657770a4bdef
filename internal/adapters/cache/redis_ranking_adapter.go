package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/providers"
	redisclient "github.com/ddeok-labs/search-backend/internal/infrastructure/clients/redis"
	"github.com/ddeok-labs/search-backend/pkg/hangul"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	scanBatch           = 500
	hsetChunk           = 500
	defaultPrefixLength = 8
)

// RedisRankingAdapter implements AutocompleteCache on Redis sorted sets
type RedisRankingAdapter struct {
	client       *redisclient.Client
	prefixLength int
}

var _ providers.AutocompleteCache = (*RedisRankingAdapter)(nil)

// NewRedisRankingAdapter creates a new Redis ranking adapter. prefixLength is
// the longest name prefix, in runes, that gets its own bucket.
func NewRedisRankingAdapter(client *redisclient.Client, prefixLength int) *RedisRankingAdapter {
	if prefixLength <= 0 {
		prefixLength = defaultPrefixLength
	}
	return &RedisRankingAdapter{
		client:       client,
		prefixLength: prefixLength,
	}
}

// IncrementScore adds delta to member's score in bucket
func (a *RedisRankingAdapter) IncrementScore(ctx context.Context, bucket, member string, delta float64) error {
	if err := a.client.Client().ZIncrBy(ctx, bucket, delta, member).Err(); err != nil {
		return fmt.Errorf("failed to increment score in %s: %w", bucket, err)
	}
	return nil
}

// TopK returns up to k members, highest score first
func (a *RedisRankingAdapter) TopK(ctx context.Context, bucket string, k int) ([]entities.RankingEntry, error) {
	if k <= 0 {
		return []entities.RankingEntry{}, nil
	}

	result, err := a.client.Client().ZRevRangeWithScores(ctx, bucket, 0, int64(k-1)).Result()
	if err == redis.Nil {
		return []entities.RankingEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read top %d from %s: %w", k, bucket, err)
	}

	entries := make([]entities.RankingEntry, 0, len(result))
	for _, z := range result {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, entities.RankingEntry{Member: member, Score: z.Score})
	}
	return entries, nil
}

// Trim keeps only the maxSize highest-scored members
func (a *RedisRankingAdapter) Trim(ctx context.Context, bucket string, maxSize int) error {
	if maxSize < 0 {
		maxSize = 0
	}
	// Ranks are ascending by score, so the lowest ranks are dropped.
	if err := a.client.Client().ZRemRangeByRank(ctx, bucket, 0, int64(-maxSize-1)).Err(); err != nil {
		return fmt.Errorf("failed to trim %s: %w", bucket, err)
	}
	return nil
}

// Expire (re)applies a TTL to bucket
func (a *RedisRankingAdapter) Expire(ctx context.Context, bucket string, ttl time.Duration) error {
	if err := a.client.Client().Expire(ctx, bucket, ttl).Err(); err != nil {
		return fmt.Errorf("failed to expire %s: %w", bucket, err)
	}
	return nil
}

// ReplaceDomain swaps the cached entities of a domain in one MULTI/EXEC so
// readers never observe a half-written domain.
func (a *RedisRankingAdapter) ReplaceDomain(ctx context.Context, domain entities.Domain, items []*entities.AutocompleteEntity, ttl time.Duration) error {
	staleKeys, err := a.scanKeys(ctx, providers.AutocompleteDomainPattern(domain))
	if err != nil {
		return err
	}

	hashKey := providers.AutocompleteEntityHash(domain)
	fields := make([]interface{}, 0, 2*len(items))
	buckets := make(map[string][]redis.Z)

	for _, item := range items {
		if item == nil || item.ID == "" {
			continue
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal entity %s: %w", item.ID, err)
		}
		fields = append(fields, item.ID, data)

		score := item.Popularity
		if score < 0 {
			score = 0
		}
		for _, prefix := range namePrefixes(item.Name, a.prefixLength) {
			bucket := providers.AutocompletePrefixBucket(domain, prefix)
			buckets[bucket] = append(buckets[bucket], redis.Z{Score: score, Member: item.ID})
		}
	}

	_, err = a.client.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(staleKeys) > 0 {
			pipe.Del(ctx, staleKeys...)
		}
		for start := 0; start < len(fields); start += 2 * hsetChunk {
			end := start + 2*hsetChunk
			if end > len(fields) {
				end = len(fields)
			}
			pipe.HSet(ctx, hashKey, fields[start:end]...)
		}
		if len(fields) > 0 && ttl > 0 {
			pipe.Expire(ctx, hashKey, ttl)
		}
		for bucket, members := range buckets {
			pipe.ZAdd(ctx, bucket, members...)
			if ttl > 0 {
				pipe.Expire(ctx, bucket, ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace %s autocomplete cache: %w", domain, err)
	}

	log.Debug().
		Str("domain", string(domain)).
		Int("entities", len(fields)/2).
		Int("buckets", len(buckets)).
		Int("stale_keys", len(staleKeys)).
		Msg("Replaced autocomplete cache")
	return nil
}

// GetEntities returns the cached projections found among ids
func (a *RedisRankingAdapter) GetEntities(ctx context.Context, domain entities.Domain, ids []string) (map[string]*entities.AutocompleteEntity, error) {
	found := make(map[string]*entities.AutocompleteEntity, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	values, err := a.client.Client().HMGet(ctx, providers.AutocompleteEntityHash(domain), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached %s entities: %w", domain, err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var entity entities.AutocompleteEntity
		if err := json.Unmarshal([]byte(raw), &entity); err != nil {
			log.Warn().Err(err).Str("domain", string(domain)).Str("id", ids[i]).Msg("Skipping undecodable cached entity")
			continue
		}
		found[ids[i]] = &entity
	}
	return found, nil
}

func (a *RedisRankingAdapter) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := a.client.Client().Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// namePrefixes lists the normalized rune prefixes of name, shortest first,
// up to maxLen runes.
func namePrefixes(name string, maxLen int) []string {
	normalized := hangul.NormalizeKeyword(name)
	n := hangul.Length(normalized)
	if n > maxLen {
		n = maxLen
	}
	prefixes := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		prefixes = append(prefixes, hangul.Prefix(normalized, i))
	}
	return prefixes
}
