package providers

import (
	"context"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
)

// ChosungIndex maps (domain, chosung string) to entity ids. It is rebuilt
// wholesale and never partially mutated.
type ChosungIndex interface {
	// Rebuild replaces the index of domain
	Rebuild(ctx context.Context, domain entities.Domain, items []entities.SearchableEntity) error

	// Find returns ids whose name chosung contains query. Exact chosung
	// matches come first, then prefix matches, then inner matches.
	Find(ctx context.Context, domain entities.Domain, query string) ([]string, error)
}
