package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	apperrors "github.com/ddeok-labs/search-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAdapter_GetByIDs(t *testing.T) {
	client, mock := setupMockDB(t)
	adapter := NewStoreAdapter(client)

	mock.ExpectQuery(`SELECT "id", "name" FROM "stores" WHERE \("id" IN \('s1', 's2'\)\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("s1", "신전떡볶이"))

	stores, err := adapter.GetByIDs(context.Background(), []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, []*entities.Store{{ID: "s1", Name: "신전떡볶이"}}, stores)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryAdapter_GetByIDs(t *testing.T) {
	client, mock := setupMockDB(t)
	adapter := NewCategoryAdapter(client)

	mock.ExpectQuery(`FROM "food_categories" WHERE`).
		WillReturnError(errors.New("connection refused"))

	_, err := adapter.GetByIDs(context.Background(), []string{"c1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupAdapters_EmptyIDsSkipQuery(t *testing.T) {
	client, mock := setupMockDB(t)

	stores, err := NewStoreAdapter(client).GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, stores)

	categories, err := NewCategoryAdapter(client).GetByIDs(context.Background(), []string{})
	require.NoError(t, err)
	assert.Empty(t, categories)

	assert.NoError(t, mock.ExpectationsWereMet())
}
