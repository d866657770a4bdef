package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/providers"
	"github.com/ddeok-labs/search-backend/internal/domain/repositories"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/observability"
	apperrors "github.com/ddeok-labs/search-backend/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// EntityIndexer receives every warmed entity, e.g. a search engine mirror
type EntityIndexer interface {
	Index(ctx context.Context, domain entities.Domain, items []*entities.AutocompleteEntity, seqStart int64) error
}

// WarmResult summarizes one domain warm
type WarmResult struct {
	Domain   entities.Domain
	Entities int
	Pages    int
	Duration time.Duration
}

// CacheWarmingService rebuilds the autocomplete cache and the chosung index
// of a domain from the entity repository
type CacheWarmingService struct {
	repo    repositories.EntityRepository
	cache   providers.AutocompleteCache
	index   providers.ChosungIndex
	indexer EntityIndexer
	ttl     time.Duration
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(
	repo repositories.EntityRepository,
	cache providers.AutocompleteCache,
	index providers.ChosungIndex,
	ttl time.Duration,
) *CacheWarmingService {
	return &CacheWarmingService{
		repo:  repo,
		cache: cache,
		index: index,
		ttl:   ttl,
	}
}

// WithIndexer mirrors warmed entities into indexer
func (s *CacheWarmingService) WithIndexer(indexer EntityIndexer) *CacheWarmingService {
	s.indexer = indexer
	return s
}

// Warm reads every page of domain, then replaces the cached entities and
// rebuilds the chosung index in one step each. An empty domain is a no-op.
// Any failure aborts the warm and is returned as an UNAVAILABLE error.
func (s *CacheWarmingService) Warm(ctx context.Context, domain entities.Domain, batchSize int) (*WarmResult, error) {
	ctx, span := observability.StartSpan(ctx, "CacheWarmingService.Warm")
	defer span.End()
	span.SetAttributes(attribute.String("domain", string(domain)), attribute.Int("batch_size", batchSize))

	start := time.Now()
	result := &WarmResult{Domain: domain}
	fail := func(step string, err error) (*WarmResult, error) {
		observability.RecordError(span, err)
		observability.LoggerFromContext(ctx).Error().Err(err).Str("domain", string(domain)).Str("step", step).Msg("Cache warm failed")
		return nil, apperrors.NewUnavailableError(fmt.Sprintf("cache warm of domain %s failed at %s", domain, step), err)
	}

	if batchSize <= 0 {
		return nil, apperrors.NewValidationError("batch size must be positive")
	}

	total, err := s.repo.Count(ctx, domain)
	if err != nil {
		return fail("count", err)
	}
	if total == 0 {
		log.Info().Str("domain", string(domain)).Msg("Nothing to warm")
		result.Duration = time.Since(start)
		return result, nil
	}

	items := make([]*entities.AutocompleteEntity, 0, total)
	pages := (total + batchSize - 1) / batchSize
	for page := 0; page < pages; page++ {
		rows, err := s.repo.Page(ctx, domain, page, batchSize)
		if err != nil {
			return fail(fmt.Sprintf("page %d", page), err)
		}
		items = append(items, rows...)
		result.Pages++
		if len(rows) < batchSize {
			break
		}
	}

	searchable := make([]entities.SearchableEntity, len(items))
	for i, item := range items {
		searchable[i] = item.Searchable()
	}

	if err := s.cache.ReplaceDomain(ctx, domain, items, s.ttl); err != nil {
		return fail("cache write", err)
	}
	if err := s.index.Rebuild(ctx, domain, searchable); err != nil {
		return fail("index rebuild", err)
	}
	if s.indexer != nil {
		if err := s.indexer.Index(ctx, domain, items, 0); err != nil {
			return fail("search index", err)
		}
	}

	result.Entities = len(items)
	result.Duration = time.Since(start)
	log.Info().
		Str("domain", string(domain)).
		Int("entities", result.Entities).
		Int("pages", result.Pages).
		Dur("duration", result.Duration).
		Msg("Warmed autocomplete cache")
	return result, nil
}

// WarmAll warms domains concurrently. Domains have disjoint keys, so a
// failing domain does not cancel the others; the first error is returned.
func (s *CacheWarmingService) WarmAll(ctx context.Context, domains []entities.Domain, batchSize int) ([]*WarmResult, error) {
	results := make([]*WarmResult, len(domains))
	var g errgroup.Group
	for i, domain := range domains {
		g.Go(func() error {
			r, err := s.Warm(ctx, domain, batchSize)
			results[i] = r
			return err
		})
	}
	return results, g.Wait()
}

// StartPeriodicWarming re-warms domains every interval until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, domains []entities.Domain, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Stopping cache warming service")
				return
			case <-ticker.C:
				if _, err := s.WarmAll(ctx, domains, batchSize); err != nil {
					log.Error().Err(err).Msg("Periodic cache warming failed")
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("Started periodic cache warming")
}
