package services

import (
	"context"
	"strings"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"golang.org/x/sync/errgroup"
)

// Autocompleter is one domain's autocomplete
type Autocompleter interface {
	Autocomplete(ctx context.Context, keyword string, limit int) []*entities.Suggestion
}

// UnifiedAutocompleteService merges the names suggested by two domains
type UnifiedAutocompleteService struct {
	first  Autocompleter
	second Autocompleter
}

// NewUnifiedAutocompleteService creates a merger. Names of first come before
// names of second.
func NewUnifiedAutocompleteService(first, second Autocompleter) *UnifiedAutocompleteService {
	return &UnifiedAutocompleteService{first: first, second: second}
}

// Autocomplete runs both domains concurrently and returns at most limit
// names, deduplicated case-insensitively
func (s *UnifiedAutocompleteService) Autocomplete(ctx context.Context, keyword string, limit int) []string {
	if strings.TrimSpace(keyword) == "" || limit <= 0 {
		return []string{}
	}

	var firstResults, secondResults []*entities.Suggestion
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		firstResults = s.first.Autocomplete(gctx, keyword, limit)
		return nil
	})
	g.Go(func() error {
		secondResults = s.second.Autocomplete(gctx, keyword, limit)
		return nil
	})
	_ = g.Wait()

	return MergeNames(limit, firstResults, secondResults)
}

// MergeNames appends names list by list, skipping case-insensitive
// duplicates, until limit names are collected
func MergeNames(limit int, lists ...[]*entities.Suggestion) []string {
	names := make([]string, 0, limit)
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, s := range list {
			if len(names) >= limit {
				return names
			}
			key := strings.ToLower(s.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			names = append(names, s.Name)
		}
	}
	return names
}
