package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/repositories"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/observability"
	"github.com/ddeok-labs/search-backend/pkg/hangul"
	"github.com/rs/zerolog/log"
)

var (
	// ErrEventQueueFull is returned by Enqueue when the queue is saturated
	ErrEventQueueFull = errors.New("search event queue is full")

	// ErrEventLoggerStopped is returned by Enqueue after Stop
	ErrEventLoggerStopped = errors.New("search event logger is stopped")
)

// SearchEventCommand describes one search or click-through to record
type SearchEventCommand struct {
	Domain          entities.Domain
	Keyword         string
	MemberID        *string
	ClickedEntityID *string
	Latitude        *float64
	Longitude       *float64
}

// SearchRecorder records search activity without blocking the caller
type SearchRecorder interface {
	LogSearch(ctx context.Context, cmd SearchEventCommand)
}

// SearchEventLoggerConfig sizes the worker pool
type SearchEventLoggerConfig struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

// SearchEventLogger appends search events to the event log from a bounded
// queue drained by a fixed worker pool. When the queue is full the event is
// dropped and counted; callers never see the error.
type SearchEventLogger struct {
	repo    repositories.SearchKeywordRepository
	cfg     SearchEventLoggerConfig
	metrics *observability.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	queue   chan *entities.SearchKeywordEvent
	started bool
	stopped bool
	wg      sync.WaitGroup

	dropped atomic.Int64
	failed  atomic.Int64
}

// NewSearchEventLogger creates a logger. Call Start before logging.
func NewSearchEventLogger(repo repositories.SearchKeywordRepository, cfg SearchEventLoggerConfig, metrics *observability.Metrics) *SearchEventLogger {
	cfg.Workers = max(cfg.Workers, 1)
	cfg.QueueSize = max(cfg.QueueSize, 1)
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	return &SearchEventLogger{
		repo:    repo,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
		queue:   make(chan *entities.SearchKeywordEvent, cfg.QueueSize),
	}
}

// Start launches the workers
func (l *SearchEventLogger) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.stopped {
		return
	}
	l.started = true

	for i := 0; i < l.cfg.Workers; i++ {
		l.wg.Add(1)
		go l.worker()
	}
	log.Info().Int("workers", l.cfg.Workers).Int("queue_size", l.cfg.QueueSize).Msg("Started search event logger")
}

// Stop closes the queue and waits for the workers to drain it, or for ctx
func (l *SearchEventLogger) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	close(l.queue)
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Int64("dropped", l.Dropped()).Msg("Stopped search event logger")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSearch records a search
func (l *SearchEventLogger) LogSearch(ctx context.Context, cmd SearchEventCommand) {
	cmd.ClickedEntityID = nil
	l.log(ctx, cmd)
}

// LogClick records a click-through on clickedEntityID
func (l *SearchEventLogger) LogClick(ctx context.Context, cmd SearchEventCommand, clickedEntityID string) {
	if clickedEntityID == "" {
		return
	}
	cmd.ClickedEntityID = &clickedEntityID
	l.log(ctx, cmd)
}

func (l *SearchEventLogger) log(ctx context.Context, cmd SearchEventCommand) {
	normalized := hangul.NormalizeKeyword(cmd.Keyword)
	if normalized == "" {
		return
	}

	event := &entities.SearchKeywordEvent{
		Domain:            cmd.Domain,
		RawKeyword:        cmd.Keyword,
		NormalizedKeyword: normalized,
		MemberID:          cmd.MemberID,
		ClickedEntityID:   cmd.ClickedEntityID,
		Latitude:          cmd.Latitude,
		Longitude:         cmd.Longitude,
		OccurredAt:        l.now(),
	}

	if err := l.Enqueue(event); err != nil {
		l.dropped.Add(1)
		l.metrics.RecordDroppedEvent(ctx, dropReason(err))
		log.Warn().Err(err).Str("keyword", normalized).Msg("Dropped search event")
	}
}

// Enqueue hands event to the workers without blocking
func (l *SearchEventLogger) Enqueue(event *entities.SearchKeywordEvent) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return ErrEventLoggerStopped
	}
	select {
	case l.queue <- event:
		return nil
	default:
		return ErrEventQueueFull
	}
}

// Dropped returns the number of events dropped before reaching a worker
func (l *SearchEventLogger) Dropped() int64 {
	return l.dropped.Load()
}

// Failed returns the number of events whose write failed
func (l *SearchEventLogger) Failed() int64 {
	return l.failed.Load()
}

func (l *SearchEventLogger) worker() {
	defer l.wg.Done()
	for event := range l.queue {
		// The request context is gone by now; each write gets its own deadline.
		ctx, cancel := context.WithTimeout(context.Background(), l.cfg.WriteTimeout)
		if err := l.repo.Append(ctx, event); err != nil {
			l.failed.Add(1)
			l.metrics.RecordDroppedEvent(ctx, "write_failed")
			log.Warn().Err(err).Str("keyword", event.NormalizedKeyword).Msg("Failed to append search event")
		}
		cancel()
	}
}

func dropReason(err error) string {
	if errors.Is(err, ErrEventLoggerStopped) {
		return "stopped"
	}
	return "queue_full"
}
