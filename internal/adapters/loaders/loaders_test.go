package loaders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	apperrors "github.com/ddeok-labs/search-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStores struct {
	mu    sync.Mutex
	calls [][]string
	err   error
	data  map[string]string
}

func (f *fakeStores) GetByIDs(ctx context.Context, ids []string) ([]*entities.Store, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ids)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*entities.Store
	for _, id := range ids {
		if name, ok := f.data[id]; ok {
			out = append(out, &entities.Store{ID: id, Name: name})
		}
	}
	return out, nil
}

type noCategories struct{}

func (noCategories) GetByIDs(ctx context.Context, ids []string) ([]*entities.Category, error) {
	return nil, nil
}

func TestStoreLoader_BatchesKeys(t *testing.T) {
	stores := &fakeStores{data: map[string]string{"s1": "신전떡볶이", "s2": "홍콩반점"}}
	l := NewLoaders(stores, noCategories{}, 3)
	ctx := context.Background()

	t1 := l.StoreLoader.Load(ctx, "s1")
	t2 := l.StoreLoader.Load(ctx, "s2")
	t3 := l.StoreLoader.Load(ctx, "s3")

	s1, err := t1()
	require.NoError(t, err)
	assert.Equal(t, "신전떡볶이", s1.Name)

	s2, err := t2()
	require.NoError(t, err)
	assert.Equal(t, "홍콩반점", s2.Name)

	_, err = t3()
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	require.Len(t, stores.calls, 1)
	assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, stores.calls[0])
}

func TestStoreLoader_RepositoryErrorFailsEveryKey(t *testing.T) {
	boom := errors.New("db down")
	l := NewLoaders(&fakeStores{err: boom}, noCategories{}, 2)
	ctx := context.Background()

	t1 := l.StoreLoader.Load(ctx, "s1")
	t2 := l.StoreLoader.Load(ctx, "s2")

	_, err := t1()
	assert.ErrorIs(t, err, boom)
	_, err = t2()
	assert.ErrorIs(t, err, boom)
}
