package services

import (
	"context"

	"github.com/ddeok-labs/search-backend/internal/adapters/loaders"
	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/repositories"
	apperrors "github.com/ddeok-labs/search-backend/pkg/errors"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/rs/zerolog/log"
)

// Enricher attaches domain-specific data to ranked suggestions. Suggestions
// that cannot be enriched are left out of the result; order is preserved.
type Enricher interface {
	Enrich(ctx context.Context, suggestions []*entities.Suggestion) []*entities.Suggestion
}

// EnricherFunc adapts a function to Enricher
type EnricherFunc func(ctx context.Context, suggestions []*entities.Suggestion) []*entities.Suggestion

// Enrich calls f
func (f EnricherFunc) Enrich(ctx context.Context, suggestions []*entities.Suggestion) []*entities.Suggestion {
	return f(ctx, suggestions)
}

// IdentityEnricher returns suggestions unchanged. Stores and groups use it.
var IdentityEnricher Enricher = EnricherFunc(func(_ context.Context, suggestions []*entities.Suggestion) []*entities.Suggestion {
	return suggestions
})

// FoodEnricher attaches the owning store (required) and the category name
// (optional) to food suggestions. Only a store confirmed missing drops a food.
type FoodEnricher struct {
	stores     repositories.StoreRepository
	categories repositories.CategoryRepository
}

// NewFoodEnricher creates a new food enricher
func NewFoodEnricher(stores repositories.StoreRepository, categories repositories.CategoryRepository) *FoodEnricher {
	return &FoodEnricher{stores: stores, categories: categories}
}

// Enrich drops foods whose store no longer exists. A failed store lookup keeps
// the food with a nil Store; an unresolved category is nulled.
func (e *FoodEnricher) Enrich(ctx context.Context, suggestions []*entities.Suggestion) []*entities.Suggestion {
	if len(suggestions) == 0 {
		return suggestions
	}

	storeIDs := uniqueAttr(suggestions, entities.AttrStoreID)
	categoryIDs := uniqueAttr(suggestions, entities.AttrCategoryID)
	l := loaders.NewLoaders(e.stores, e.categories, max(len(storeIDs), len(categoryIDs)))

	// Issue every Load before resolving any thunk so each kind goes out as one batch.
	storeThunks := make(map[string]dataloader.Thunk[*entities.Store], len(storeIDs))
	for _, id := range storeIDs {
		storeThunks[id] = l.StoreLoader.Load(ctx, id)
	}
	categoryThunks := make(map[string]dataloader.Thunk[*entities.Category], len(categoryIDs))
	for _, id := range categoryIDs {
		categoryThunks[id] = l.CategoryLoader.Load(ctx, id)
	}

	out := make([]*entities.Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		storeID := s.Attributes[entities.AttrStoreID]
		thunk, ok := storeThunks[storeID]
		if !ok {
			log.Debug().Str("food_id", s.ID).Msg("Dropped food without owning store")
			continue
		}
		store, err := thunk()
		switch {
		case apperrors.IsType(err, apperrors.ErrorTypeNotFound):
			log.Debug().Err(err).Str("food_id", s.ID).Str("store_id", storeID).Msg("Dropped food whose store no longer exists")
			continue
		case err != nil:
			log.Warn().Err(err).Str("food_id", s.ID).Str("store_id", storeID).Msg("Store lookup failed, keeping food without store")
			s.Store = nil
		default:
			s.Store = &entities.StoreSummary{ID: store.ID, Name: store.Name}
		}

		s.Category = nil
		if thunk, ok := categoryThunks[s.Attributes[entities.AttrCategoryID]]; ok {
			if category, err := thunk(); err == nil {
				name := category.Name
				s.Category = &name
			}
		}
		out = append(out, s)
	}
	return out
}

func uniqueAttr(suggestions []*entities.Suggestion, key string) []string {
	seen := make(map[string]struct{}, len(suggestions))
	var ids []string
	for _, s := range suggestions {
		v := s.Attributes[key]
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ids = append(ids, v)
	}
	return ids
}
