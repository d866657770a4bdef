package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
)

// RankingCache is a remote sorted-score store keyed by bucket.
type RankingCache interface {
	// IncrementScore adds delta to member's score in bucket
	IncrementScore(ctx context.Context, bucket, member string, delta float64) error

	// TopK returns up to k members of bucket, highest score first
	TopK(ctx context.Context, bucket string, k int) ([]entities.RankingEntry, error)

	// Trim keeps only the maxSize highest-scored members of bucket
	Trim(ctx context.Context, bucket string, maxSize int) error

	// Expire (re)applies a TTL to bucket
	Expire(ctx context.Context, bucket string, ttl time.Duration) error
}

// AutocompleteCache holds the cached entity projections and the
// per-prefix buckets that stage one of autocomplete reads.
type AutocompleteCache interface {
	RankingCache

	// ReplaceDomain wholesale replaces the cached entities of domain
	ReplaceDomain(ctx context.Context, domain entities.Domain, items []*entities.AutocompleteEntity, ttl time.Duration) error

	// GetEntities returns the cached projections found among ids
	GetEntities(ctx context.Context, domain entities.Domain, ids []string) (map[string]*entities.AutocompleteEntity, error)
}

// Cache key layout
const (
	autocompleteKeyPrefix = "autocomplete"
	rankingKeyPrefix      = "ranking"
)

// AutocompletePrefixBucket is the bucket of entity ids whose normalized name
// starts with prefix.
func AutocompletePrefixBucket(domain entities.Domain, prefix string) string {
	return fmt.Sprintf("%s:%s:prefix:%s", autocompleteKeyPrefix, domain, prefix)
}

// AutocompleteEntityHash is the hash of id -> cached entity JSON.
func AutocompleteEntityHash(domain entities.Domain) string {
	return fmt.Sprintf("%s:%s:entities", autocompleteKeyPrefix, domain)
}

// AutocompleteDomainPattern matches every autocomplete key of domain.
func AutocompleteDomainPattern(domain entities.Domain) string {
	return fmt.Sprintf("%s:%s:*", autocompleteKeyPrefix, domain)
}

// KeywordPrefixBucket holds popular keywords sharing a prefix.
func KeywordPrefixBucket(domain entities.Domain, prefix string) string {
	return fmt.Sprintf("%s:%s:prefix:%s", rankingKeyPrefix, domain, prefix)
}

// TrendingBucket holds the popular keywords of a whole domain.
func TrendingBucket(domain entities.Domain) string {
	return fmt.Sprintf("%s:%s:trending", rankingKeyPrefix, domain)
}
