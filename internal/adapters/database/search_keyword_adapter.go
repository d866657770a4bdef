package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/repositories"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/ddeok-labs/search-backend/pkg/errors"
	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
)

const searchKeywordEventsTable = "search_keyword_events"

// SearchKeywordAdapter implements SearchKeywordRepository on PostgreSQL
type SearchKeywordAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSearchKeywordAdapter creates a new search keyword adapter
func NewSearchKeywordAdapter(client *postgres.Client) repositories.SearchKeywordRepository {
	return &SearchKeywordAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Append stores one search or click event
func (a *SearchKeywordAdapter) Append(ctx context.Context, event *entities.SearchKeywordEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	record := goqu.Record{
		"id":                 event.ID,
		"domain":             string(event.Domain),
		"raw_keyword":        event.RawKeyword,
		"normalized_keyword": event.NormalizedKeyword,
		"member_id":          nullString(event.MemberID),
		"clicked_entity_id":  nullString(event.ClickedEntityID),
		"latitude":           nullFloat(event.Latitude),
		"longitude":          nullFloat(event.Longitude),
		"occurred_at":        event.OccurredAt.UTC(),
	}

	query, args, err := a.db.Insert(searchKeywordEventsTable).Rows(record).Prepared(true).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to append search keyword event", err)
	}
	return nil
}

// AggregateBetween rolls up events with occurred_at in [from, to). A click
// event counts only as a click.
func (a *SearchKeywordAdapter) AggregateBetween(ctx context.Context, from, to time.Time, prefixLength int) ([]*entities.SearchKeywordAggregate, error) {
	if prefixLength <= 0 {
		return nil, apperrors.NewValidationError("prefix length must be positive")
	}
	if !to.After(from) {
		return []*entities.SearchKeywordAggregate{}, nil
	}

	// Grouping by ordinal keeps the LEFT() expression out of the bind args.
	prefix := goqu.L(fmt.Sprintf("LEFT(normalized_keyword, %d)", prefixLength))
	query, args, err := a.db.From(searchKeywordEventsTable).
		Select(
			goqu.I("domain"),
			prefix.As("prefix"),
			goqu.I("normalized_keyword").As("keyword"),
			goqu.L("COUNT(*) FILTER (WHERE clicked_entity_id IS NULL)").As("search_count"),
			goqu.COUNT("clicked_entity_id").As("click_count"),
		).
		Where(
			goqu.I("occurred_at").Gte(from.UTC()),
			goqu.I("occurred_at").Lt(to.UTC()),
			goqu.I("normalized_keyword").Neq(""),
		).
		GroupBy(goqu.L("1"), goqu.L("2"), goqu.L("3")).
		Order(goqu.I("domain").Asc(), goqu.I("prefix").Asc(), goqu.I("keyword").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build aggregate query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to aggregate search keyword events", err)
	}
	defer rows.Close()

	aggregates := []*entities.SearchKeywordAggregate{}
	for rows.Next() {
		agg := &entities.SearchKeywordAggregate{}
		var domain string
		if err := rows.Scan(&domain, &agg.Prefix, &agg.Keyword, &agg.SearchCount, &agg.ClickCount); err != nil {
			return nil, apperrors.NewInternalError("failed to scan search keyword aggregate", err)
		}
		agg.Domain = entities.Domain(domain)
		aggregates = append(aggregates, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to aggregate search keyword events", err)
	}
	return aggregates, nil
}

func nullString(v *string) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
