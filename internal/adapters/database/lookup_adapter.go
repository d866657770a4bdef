package database

import (
	"context"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/repositories"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/ddeok-labs/search-backend/pkg/errors"
	"github.com/doug-martin/goqu/v9"
)

// StoreAdapter implements StoreRepository
type StoreAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewStoreAdapter creates a new store adapter
func NewStoreAdapter(client *postgres.Client) repositories.StoreRepository {
	return &StoreAdapter{client: client, db: goqu.New("postgres", client.DB())}
}

// GetByIDs returns the stores that exist among ids
func (a *StoreAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Store, error) {
	rows, err := getNamedByIDs(ctx, a.client, a.db, "stores", ids)
	if err != nil {
		return nil, err
	}
	stores := make([]*entities.Store, 0, len(rows))
	for _, r := range rows {
		stores = append(stores, &entities.Store{ID: r.id, Name: r.name})
	}
	return stores, nil
}

// CategoryAdapter implements CategoryRepository
type CategoryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCategoryAdapter creates a new category adapter
func NewCategoryAdapter(client *postgres.Client) repositories.CategoryRepository {
	return &CategoryAdapter{client: client, db: goqu.New("postgres", client.DB())}
}

// GetByIDs returns the categories that exist among ids
func (a *CategoryAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Category, error) {
	rows, err := getNamedByIDs(ctx, a.client, a.db, "food_categories", ids)
	if err != nil {
		return nil, err
	}
	categories := make([]*entities.Category, 0, len(rows))
	for _, r := range rows {
		categories = append(categories, &entities.Category{ID: r.id, Name: r.name})
	}
	return categories, nil
}

type namedRow struct {
	id   string
	name string
}

func getNamedByIDs(ctx context.Context, client *postgres.Client, db *goqu.Database, table string, ids []string) ([]namedRow, error) {
	if len(ids) == 0 {
		return []namedRow{}, nil
	}

	query, args, err := db.Select("id", "name").From(table).Where(goqu.Ex{"id": ids}).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get "+table+" by ids", err)
	}
	defer rows.Close()

	var result []namedRow
	for rows.Next() {
		var r namedRow
		if err := rows.Scan(&r.id, &r.name); err != nil {
			return nil, apperrors.NewInternalError("failed to scan "+table, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to get "+table+" by ids", err)
	}
	return result, nil
}
