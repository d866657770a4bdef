package services

import (
	"context"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/repositories"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// Hydrator resolves entity ids into AutocompleteEntity records. Entities
// fetched from the repository are kept in a small expiring LRU.
type Hydrator struct {
	repo  repositories.EntityRepository
	cache *expirable.LRU[string, *entities.AutocompleteEntity]
}

// NewHydrator creates a hydrator. A non-positive size disables the LRU.
func NewHydrator(repo repositories.EntityRepository, size int, ttl time.Duration) *Hydrator {
	h := &Hydrator{repo: repo}
	if size > 0 {
		h.cache = expirable.NewLRU[string, *entities.AutocompleteEntity](size, nil, ttl)
	}
	return h
}

// Hydrate returns the records found for ids. Records already resolved by an
// earlier stage are used as is; ids nobody can resolve are left out. A
// repository error returns whatever was resolved along with the error.
func (h *Hydrator) Hydrate(ctx context.Context, domain entities.Domain, ids []string, resolved map[string]*entities.AutocompleteEntity) (map[string]*entities.AutocompleteEntity, error) {
	out := make(map[string]*entities.AutocompleteEntity, len(ids))
	var missing []string

	for _, id := range ids {
		if e, ok := resolved[id]; ok && e != nil {
			out[id] = e
			continue
		}
		if h.cache != nil {
			if e, ok := h.cache.Get(hydrationKey(domain, id)); ok {
				out[id] = e
				continue
			}
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := h.repo.FindByIDs(ctx, domain, missing)
	if err != nil {
		return out, err
	}
	for _, e := range fetched {
		out[e.ID] = e
		if h.cache != nil {
			h.cache.Add(hydrationKey(domain, e.ID), e)
		}
	}

	if dropped := len(missing) - len(fetched); dropped > 0 {
		log.Debug().
			Str("domain", string(domain)).
			Int("dropped", dropped).
			Msg("Dropped ids that no longer resolve")
	}
	return out, nil
}

func hydrationKey(domain entities.Domain, id string) string {
	return string(domain) + ":" + id
}
