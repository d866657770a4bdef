package repositories

import (
	"context"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
)

// SearchKeywordRepository is the append-only raw search event log.
type SearchKeywordRepository interface {
	// Append stores one event
	Append(ctx context.Context, event *entities.SearchKeywordEvent) error

	// AggregateBetween rolls up events with occurred_at in [from, to), grouped
	// by domain, keyword and the first prefixLength runes of the keyword
	AggregateBetween(ctx context.Context, from, to time.Time, prefixLength int) ([]*entities.SearchKeywordAggregate, error)
}
