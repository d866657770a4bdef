package loaders

import (
	"context"
	"fmt"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/repositories"
	apperrors "github.com/ddeok-labs/search-backend/pkg/errors"
	"github.com/graph-gophers/dataloader/v7"
)

// maxWait bounds how long a partially filled batch waits before dispatch
const maxWait = 2 * time.Millisecond

// Loaders batches the secondary lookups of one enrichment pass
type Loaders struct {
	StoreLoader    *dataloader.Loader[string, *entities.Store]
	CategoryLoader *dataloader.Loader[string, *entities.Category]
}

// NewLoaders creates loaders whose batch dispatches as soon as capacity keys
// have been requested. Loaders cache results, so create one set per pass.
func NewLoaders(storeRepo repositories.StoreRepository, categoryRepo repositories.CategoryRepository, capacity int) *Loaders {
	capacity = max(capacity, 1)
	return &Loaders{
		StoreLoader: dataloader.NewBatchedLoader(
			func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Store] {
				stores, err := storeRepo.GetByIDs(ctx, keys)
				storeMap := make(map[string]*entities.Store, len(stores))
				for _, s := range stores {
					storeMap[s.ID] = s
				}
				return results(keys, storeMap, err, "store")
			},
			dataloader.WithBatchCapacity[string, *entities.Store](capacity),
			dataloader.WithWait[string, *entities.Store](maxWait),
		),
		CategoryLoader: dataloader.NewBatchedLoader(
			func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Category] {
				categories, err := categoryRepo.GetByIDs(ctx, keys)
				categoryMap := make(map[string]*entities.Category, len(categories))
				for _, c := range categories {
					categoryMap[c.ID] = c
				}
				return results(keys, categoryMap, err, "category")
			},
			dataloader.WithBatchCapacity[string, *entities.Category](capacity),
			dataloader.WithWait[string, *entities.Category](maxWait),
		),
	}
}

// results maps every key to its record, the batch error, or a NOT_FOUND error
func results[V any](keys []string, found map[string]V, err error, kind string) []*dataloader.Result[V] {
	out := make([]*dataloader.Result[V], len(keys))
	for i, key := range keys {
		if err != nil {
			out[i] = &dataloader.Result[V]{Error: err}
		} else if v, ok := found[key]; ok {
			out[i] = &dataloader.Result[V]{Data: v}
		} else {
			out[i] = &dataloader.Result[V]{Error: apperrors.NewNotFoundError(fmt.Sprintf("%s %s not found", kind, key))}
		}
	}
	return out
}
