package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestEventLogger(repo *MockSearchKeywordRepository, queueSize int) *SearchEventLogger {
	l := NewSearchEventLogger(repo, SearchEventLoggerConfig{Workers: 2, QueueSize: queueSize, WriteTimeout: time.Second}, nil)
	l.now = fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return l
}

func TestSearchEventLogger_DropsOnOverflowAndDrainsOnStop(t *testing.T) {
	repo := new(MockSearchKeywordRepository)
	repo.On("Append", mock.Anything, mock.MatchedBy(func(e *entities.SearchKeywordEvent) bool {
		return e.NormalizedKeyword == "떡볶이" && e.RawKeyword == " 떡볶이 " && !e.IsClick()
	})).Return(nil).Once()

	l := newTestEventLogger(repo, 1)
	ctx := context.Background()
	l.LogSearch(ctx, SearchEventCommand{Domain: entities.DomainFood, Keyword: " 떡볶이 "})
	l.LogSearch(ctx, SearchEventCommand{Domain: entities.DomainFood, Keyword: "짜장면"})
	assert.Equal(t, int64(1), l.Dropped())

	l.Start()
	require.NoError(t, l.Stop(ctx))
	repo.AssertExpectations(t)
}

func TestSearchEventLogger_LogClick(t *testing.T) {
	repo := new(MockSearchKeywordRepository)
	member := "m-1"
	repo.On("Append", mock.Anything, mock.MatchedBy(func(e *entities.SearchKeywordEvent) bool {
		return e.IsClick() && *e.ClickedEntityID == "f-42" && *e.MemberID == member && e.Domain == entities.DomainFood
	})).Return(nil).Once()

	l := newTestEventLogger(repo, 4)
	l.Start()
	l.LogClick(context.Background(), SearchEventCommand{Domain: entities.DomainFood, Keyword: "떡볶이", MemberID: &member}, "f-42")
	l.LogClick(context.Background(), SearchEventCommand{Domain: entities.DomainFood, Keyword: "떡볶이"}, "")
	require.NoError(t, l.Stop(context.Background()))
	repo.AssertExpectations(t)
}

func TestSearchEventLogger_IgnoresBlankKeyword(t *testing.T) {
	repo := new(MockSearchKeywordRepository)
	l := newTestEventLogger(repo, 1)
	l.LogSearch(context.Background(), SearchEventCommand{Domain: entities.DomainStore, Keyword: "   "})
	assert.Zero(t, l.Dropped())
	assert.Len(t, l.queue, 0)
}

func TestSearchEventLogger_StoppedRejectsEvents(t *testing.T) {
	l := newTestEventLogger(new(MockSearchKeywordRepository), 1)
	l.Start()
	require.NoError(t, l.Stop(context.Background()))
	require.NoError(t, l.Stop(context.Background()))

	assert.ErrorIs(t, l.Enqueue(&entities.SearchKeywordEvent{NormalizedKeyword: "김밥"}), ErrEventLoggerStopped)
	l.LogSearch(context.Background(), SearchEventCommand{Domain: entities.DomainFood, Keyword: "김밥"})
	assert.Equal(t, int64(1), l.Dropped())
}

func TestSearchEventLogger_CountsFailedWrites(t *testing.T) {
	repo := new(MockSearchKeywordRepository)
	repo.On("Append", mock.Anything, mock.Anything).Return(errors.New("db down"))

	l := newTestEventLogger(repo, 4)
	l.Start()
	l.LogSearch(context.Background(), SearchEventCommand{Domain: entities.DomainFood, Keyword: "김밥"})
	require.NoError(t, l.Stop(context.Background()))

	assert.Equal(t, int64(1), l.Failed())
	assert.Zero(t, l.Dropped())
}
