package repositories

import (
	"context"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
)

// EntityRepository is the persistent system of record for searchable entities.
type EntityRepository interface {
	// FindByNamePrefix returns up to limit entities whose name starts with prefix
	FindByNamePrefix(ctx context.Context, domain entities.Domain, prefix string, limit int) ([]*entities.AutocompleteEntity, error)

	// FindByIDs returns the entities that exist among ids, in no particular order
	FindByIDs(ctx context.Context, domain entities.Domain, ids []string) ([]*entities.AutocompleteEntity, error)

	// Count returns the number of entities in the domain
	Count(ctx context.Context, domain entities.Domain) (int, error)

	// Page returns the zero-based page of entities ordered by id
	Page(ctx context.Context, domain entities.Domain, pageNumber, pageSize int) ([]*entities.AutocompleteEntity, error)
}

// StoreRepository resolves owning stores for food enrichment.
type StoreRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Store, error)
}

// CategoryRepository resolves optional food categories.
type CategoryRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Category, error)
}
