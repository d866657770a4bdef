package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/repositories"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/ddeok-labs/search-backend/pkg/errors"
	"github.com/doug-martin/goqu/v9"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

// entityTable maps a domain onto its system-of-record table. Food rows carry
// the owning store, an optional category and the primary flag.
type entityTable struct {
	name     string
	withFood bool
}

var entityTables = map[entities.Domain]entityTable{
	entities.DomainFood:  {name: "foods", withFood: true},
	entities.DomainStore: {name: "stores"},
	entities.DomainGroup: {name: "groups"},
}

// EntityAdapter implements EntityRepository on PostgreSQL
type EntityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEntityAdapter creates a new entity adapter
func NewEntityAdapter(client *postgres.Client) repositories.EntityRepository {
	return &EntityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// FindByNamePrefix returns up to limit entities whose name starts with prefix,
// most popular first
func (a *EntityAdapter) FindByNamePrefix(ctx context.Context, domain entities.Domain, prefix string, limit int) ([]*entities.AutocompleteEntity, error) {
	table, err := tableFor(domain)
	if err != nil {
		return nil, err
	}
	if prefix == "" || limit <= 0 {
		return []*entities.AutocompleteEntity{}, nil
	}

	query, args, err := a.db.Select(table.columns()...).
		From(table.name).
		Where(goqu.I("name").ILike(escapeLike(prefix) + "%")).
		Order(goqu.I("popularity").Desc(), goqu.I("id").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build prefix query", err)
	}

	return a.query(ctx, table, "failed to find entities by name prefix", query, args...)
}

// FindByIDs returns the entities that exist among ids
func (a *EntityAdapter) FindByIDs(ctx context.Context, domain entities.Domain, ids []string) ([]*entities.AutocompleteEntity, error) {
	table, err := tableFor(domain)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*entities.AutocompleteEntity{}, nil
	}

	query, args, err := a.db.Select(table.columns()...).
		From(table.name).
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.query(ctx, table, "failed to get entities by ids", query, args...)
}

// Count returns the number of rows of the domain table
func (a *EntityAdapter) Count(ctx context.Context, domain entities.Domain) (int, error) {
	table, err := tableFor(domain)
	if err != nil {
		return 0, err
	}

	query, args, err := a.db.From(table.name).Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count entities", err)
	}
	return count, nil
}

// Page returns one zero-based page of the domain ordered by id
func (a *EntityAdapter) Page(ctx context.Context, domain entities.Domain, pageNumber, pageSize int) ([]*entities.AutocompleteEntity, error) {
	table, err := tableFor(domain)
	if err != nil {
		return nil, err
	}
	if pageNumber < 0 || pageSize <= 0 {
		return nil, apperrors.NewValidationError("page number must be >= 0 and page size > 0")
	}

	query, args, err := a.db.Select(table.columns()...).
		From(table.name).
		Order(goqu.I("id").Asc()).
		Limit(uint(pageSize)).
		Offset(uint(pageNumber * pageSize)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build page query", err)
	}

	return a.query(ctx, table, "failed to page entities", query, args...)
}

func (a *EntityAdapter) query(ctx context.Context, table entityTable, failure, query string, args ...interface{}) ([]*entities.AutocompleteEntity, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError(failure, err)
	}
	defer rows.Close()

	items := []*entities.AutocompleteEntity{}
	for rows.Next() {
		item, err := table.scan(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan entity", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError(failure, err)
	}
	return items, nil
}

func (t entityTable) columns() []interface{} {
	cols := []interface{}{"id", "name", "popularity"}
	if t.withFood {
		cols = append(cols, "is_primary", "store_id", "category_id")
	}
	return cols
}

func (t entityTable) scan(rows *sql.Rows) (*entities.AutocompleteEntity, error) {
	item := &entities.AutocompleteEntity{}
	var popularity sql.NullFloat64

	if !t.withFood {
		if err := rows.Scan(&item.ID, &item.Name, &popularity); err != nil {
			return nil, err
		}
		item.Popularity = popularity.Float64
		return item, nil
	}

	var primary sql.NullBool
	var storeID, categoryID sql.NullString
	if err := rows.Scan(&item.ID, &item.Name, &popularity, &primary, &storeID, &categoryID); err != nil {
		return nil, err
	}
	item.Popularity = popularity.Float64
	item.Attributes = map[string]string{
		entities.AttrPrimary: strconv.FormatBool(primary.Bool),
	}
	if storeID.Valid {
		item.Attributes[entities.AttrStoreID] = storeID.String
	}
	if categoryID.Valid {
		item.Attributes[entities.AttrCategoryID] = categoryID.String
	}
	return item, nil
}

func tableFor(domain entities.Domain) (entityTable, error) {
	table, ok := entityTables[domain]
	if !ok {
		return entityTable{}, apperrors.NewValidationError("unknown domain: " + string(domain))
	}
	return table, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes prefix match literally inside a LIKE pattern
func escapeLike(prefix string) string {
	return likeEscaper.Replace(prefix)
}
