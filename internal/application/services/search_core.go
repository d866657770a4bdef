package services

import (
	"context"
	"fmt"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	apperrors "github.com/ddeok-labs/search-backend/pkg/errors"
)

// SearchCore is the in-process surface offered to an API layer
type SearchCore struct {
	autocompletes map[entities.Domain]*AutocompleteService
	unified       *UnifiedAutocompleteService
	aggregator    *KeywordAggregator
	events        *SearchEventLogger
	warmer        *CacheWarmingService
}

// NewSearchCore bundles the services. unified, events and warmer may be nil.
func NewSearchCore(
	autocompletes []*AutocompleteService,
	unified *UnifiedAutocompleteService,
	aggregator *KeywordAggregator,
	events *SearchEventLogger,
	warmer *CacheWarmingService,
) *SearchCore {
	byDomain := make(map[entities.Domain]*AutocompleteService, len(autocompletes))
	for _, a := range autocompletes {
		byDomain[a.Domain()] = a
	}
	return &SearchCore{
		autocompletes: byDomain,
		unified:       unified,
		aggregator:    aggregator,
		events:        events,
		warmer:        warmer,
	}
}

// Autocomplete runs the autocomplete of domain
func (c *SearchCore) Autocomplete(ctx context.Context, domain entities.Domain, keyword string, limit int) ([]*entities.Suggestion, error) {
	a, ok := c.autocompletes[domain]
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("autocomplete is not configured for domain %q", domain))
	}
	return a.Autocomplete(ctx, keyword, limit), nil
}

// UnifiedAutocomplete returns merged names across the unified domains
func (c *SearchCore) UnifiedAutocomplete(ctx context.Context, keyword string, limit int) []string {
	if c.unified == nil {
		return []string{}
	}
	return c.unified.Autocomplete(ctx, keyword, limit)
}

// GetTrendingKeywords returns the top keywords of domain
func (c *SearchCore) GetTrendingKeywords(ctx context.Context, domain entities.Domain, limit int) []entities.TrendingKeyword {
	return c.aggregator.GetTrendingKeywords(ctx, domain, limit)
}

// GetPopularKeywords returns the top keywords of domain starting with prefix
func (c *SearchCore) GetPopularKeywords(ctx context.Context, domain entities.Domain, prefix string, limit int) []entities.TrendingKeyword {
	return c.aggregator.GetPopularKeywords(ctx, domain, prefix, limit)
}

// LogSearchEvent records cmd in the background. A command naming a clicked
// entity is recorded as a click-through.
func (c *SearchCore) LogSearchEvent(ctx context.Context, cmd SearchEventCommand) {
	if c.events == nil {
		return
	}
	if cmd.ClickedEntityID != nil {
		c.events.LogClick(ctx, cmd, *cmd.ClickedEntityID)
		return
	}
	c.events.LogSearch(ctx, cmd)
}

// AggregateRecentEvents runs one aggregation window
func (c *SearchCore) AggregateRecentEvents(ctx context.Context) (*AggregationResult, error) {
	return c.aggregator.AggregateRecentEvents(ctx)
}

// WarmCache rebuilds the cache and index of domain
func (c *SearchCore) WarmCache(ctx context.Context, domain entities.Domain, batchSize int) (*WarmResult, error) {
	if c.warmer == nil {
		return nil, apperrors.NewValidationError("cache warming is not configured")
	}
	return c.warmer.Warm(ctx, domain, batchSize)
}
