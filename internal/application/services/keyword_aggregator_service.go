package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/providers"
	"github.com/ddeok-labs/search-backend/internal/domain/repositories"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/observability"
	"github.com/ddeok-labs/search-backend/pkg/config"
	"github.com/ddeok-labs/search-backend/pkg/hangul"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ErrAggregationInProgress is returned when a run overlaps another
var ErrAggregationInProgress = errors.New("keyword aggregation already in progress")

// KeywordAggregatorConfig tunes the trending keyword job
type KeywordAggregatorConfig struct {
	WindowMinutes        int
	PrefixLength         int
	SearchWeight         float64
	ClickWeight          float64
	MaxKeywordsPerPrefix int
	TTL                  time.Duration
	Parallelism          int
}

// NewKeywordAggregatorConfig maps the aggregation settings
func NewKeywordAggregatorConfig(cfg config.AggregationConfig) KeywordAggregatorConfig {
	return KeywordAggregatorConfig{
		WindowMinutes:        cfg.WindowMinutes,
		PrefixLength:         cfg.PrefixLength,
		SearchWeight:         cfg.SearchWeight,
		ClickWeight:          cfg.ClickWeight,
		MaxKeywordsPerPrefix: cfg.MaxKeywordsPerPrefix,
		TTL:                  cfg.TTL,
		Parallelism:          cfg.Parallelism,
	}
}

// DefaultKeywordAggregatorConfig returns the stock settings
func DefaultKeywordAggregatorConfig() KeywordAggregatorConfig {
	return KeywordAggregatorConfig{
		WindowMinutes:        10,
		PrefixLength:         2,
		SearchWeight:         0.7,
		ClickWeight:          1.3,
		MaxKeywordsPerPrefix: 200,
		TTL:                  12 * time.Hour,
		Parallelism:          4,
	}
}

func (c KeywordAggregatorConfig) window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

// AggregationResult summarizes one run
type AggregationResult struct {
	From     time.Time
	To       time.Time
	Rows     int
	Buckets  int
	Keywords int
	Skipped  bool
}

type keywordScore struct {
	keyword string
	score   float64
}

type bucketWrite struct {
	bucket string
	scores []keywordScore
}

// KeywordAggregator folds windows of the search event log into the ranking
// cache. It owns the watermark: the end of the last window whose buckets
// were all written.
type KeywordAggregator struct {
	repo    repositories.SearchKeywordRepository
	cache   providers.RankingCache
	cfg     KeywordAggregatorConfig
	metrics *observability.Metrics
	now     func() time.Time

	runMu     sync.Mutex
	mu        sync.Mutex
	watermark time.Time
}

// KeywordAggregatorOption customizes a KeywordAggregator
type KeywordAggregatorOption func(*KeywordAggregator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) KeywordAggregatorOption {
	return func(a *KeywordAggregator) { a.now = now }
}

// WithWatermark sets the initial watermark
func WithWatermark(t time.Time) KeywordAggregatorOption {
	return func(a *KeywordAggregator) { a.watermark = t }
}

// WithAggregatorMetrics sets the metrics sink
func WithAggregatorMetrics(m *observability.Metrics) KeywordAggregatorOption {
	return func(a *KeywordAggregator) { a.metrics = m }
}

// NewKeywordAggregator creates an aggregator with an unset watermark
func NewKeywordAggregator(repo repositories.SearchKeywordRepository, cache providers.RankingCache, cfg KeywordAggregatorConfig, opts ...KeywordAggregatorOption) *KeywordAggregator {
	cfg.Parallelism = max(cfg.Parallelism, 1)
	a := &KeywordAggregator{
		repo:  repo,
		cache: cache,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Watermark returns the end of the last aggregated window
func (a *KeywordAggregator) Watermark() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.watermark
}

// Window returns the next window to aggregate. ok is false when no time has
// passed since the watermark.
func (a *KeywordAggregator) Window() (from, to time.Time, ok bool) {
	now := a.now()
	from = a.Watermark()
	if from.IsZero() {
		from = now.Add(-a.cfg.window())
	}

	to = now.Truncate(time.Minute)
	if !to.After(from) {
		to = to.Add(a.cfg.window())
		if to.After(now) {
			to = now
		}
	}
	return from, to, to.After(from)
}

// AggregateRecentEvents aggregates the next window. The watermark moves to
// the end of the window only when every bucket write succeeded, or when the
// window held no events.
func (a *KeywordAggregator) AggregateRecentEvents(ctx context.Context) (*AggregationResult, error) {
	if !a.runMu.TryLock() {
		return nil, ErrAggregationInProgress
	}
	defer a.runMu.Unlock()

	ctx, span := observability.StartSpan(ctx, "KeywordAggregator.AggregateRecentEvents")
	defer span.End()

	from, to, ok := a.Window()
	result := &AggregationResult{From: from, To: to}
	if !ok {
		result.Skipped = true
		a.metrics.RecordAggregationRun(ctx, "skipped")
		return result, nil
	}
	span.SetAttributes(
		attribute.String("from", from.Format(time.RFC3339)),
		attribute.String("to", to.Format(time.RFC3339)),
	)

	rows, err := a.repo.AggregateBetween(ctx, from, to, a.cfg.PrefixLength)
	if err != nil {
		observability.RecordError(span, err)
		a.metrics.RecordAggregationRun(ctx, "failed")
		return nil, fmt.Errorf("failed to aggregate events in [%s, %s): %w", from.Format(time.RFC3339), to.Format(time.RFC3339), err)
	}
	result.Rows = len(rows)

	writes := a.fold(rows)
	result.Buckets = len(writes)
	for _, w := range writes {
		result.Keywords += len(w.scores)
	}

	if err := a.write(ctx, writes); err != nil {
		observability.RecordError(span, err)
		a.metrics.RecordAggregationRun(ctx, "failed")
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Time("from", from).
			Time("to", to).
			Msg("Keyword aggregation failed, window will be retried")
		return nil, err
	}

	a.advance(to)
	a.metrics.RecordAggregationRun(ctx, "succeeded")
	log.Info().
		Time("from", from).
		Time("to", to).
		Int("rows", result.Rows).
		Int("buckets", result.Buckets).
		Msg("Aggregated search keywords")
	return result, nil
}

// fold sums scores per (domain, prefix, keyword) and per (domain, keyword)
// for the trending bucket
func (a *KeywordAggregator) fold(rows []*entities.SearchKeywordAggregate) []bucketWrite {
	buckets := make(map[string]map[string]float64)
	add := func(bucket, keyword string, score float64) {
		if buckets[bucket] == nil {
			buckets[bucket] = make(map[string]float64)
		}
		buckets[bucket][keyword] += score
	}

	for _, row := range rows {
		keyword := hangul.NormalizeKeyword(row.Keyword)
		if keyword == "" {
			continue
		}
		score := float64(row.SearchCount)*a.cfg.SearchWeight + float64(row.ClickCount)*a.cfg.ClickWeight
		if score <= 0 {
			continue
		}
		prefix := row.Prefix
		if prefix == "" {
			prefix = hangul.Prefix(keyword, a.cfg.PrefixLength)
		}
		add(providers.KeywordPrefixBucket(row.Domain, prefix), keyword, score)
		add(providers.TrendingBucket(row.Domain), keyword, score)
	}

	writes := make([]bucketWrite, 0, len(buckets))
	for bucket, keywords := range buckets {
		w := bucketWrite{bucket: bucket, scores: make([]keywordScore, 0, len(keywords))}
		for keyword, score := range keywords {
			w.scores = append(w.scores, keywordScore{keyword: keyword, score: score})
		}
		sort.Slice(w.scores, func(i, j int) bool { return w.scores[i].keyword < w.scores[j].keyword })
		writes = append(writes, w)
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].bucket < writes[j].bucket })
	return writes
}

// write applies every bucket in parallel
func (a *KeywordAggregator) write(ctx context.Context, writes []bucketWrite) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Parallelism)

	for _, w := range writes {
		g.Go(func() error {
			for _, ks := range w.scores {
				if err := a.cache.IncrementScore(gctx, w.bucket, ks.keyword, ks.score); err != nil {
					return fmt.Errorf("bucket %s: %w", w.bucket, err)
				}
			}
			if err := a.cache.Trim(gctx, w.bucket, a.cfg.MaxKeywordsPerPrefix); err != nil {
				return fmt.Errorf("bucket %s: %w", w.bucket, err)
			}
			if err := a.cache.Expire(gctx, w.bucket, a.cfg.TTL); err != nil {
				return fmt.Errorf("bucket %s: %w", w.bucket, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *KeywordAggregator) advance(to time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if to.After(a.watermark) {
		a.watermark = to
	}
}

// Start runs AggregateRecentEvents every interval until ctx is done
func (a *KeywordAggregator) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Stopping keyword aggregator")
				return
			case <-ticker.C:
				if _, err := a.AggregateRecentEvents(ctx); err != nil {
					if errors.Is(err, ErrAggregationInProgress) {
						log.Debug().Msg("Skipped overlapping keyword aggregation")
						continue
					}
					log.Error().Err(err).Msg("Keyword aggregation run failed")
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("Started keyword aggregator")
}

// GetTrendingKeywords returns the top keywords of domain. Cache failures
// degrade to an empty list.
func (a *KeywordAggregator) GetTrendingKeywords(ctx context.Context, domain entities.Domain, limit int) []entities.TrendingKeyword {
	if limit <= 0 {
		return []entities.TrendingKeyword{}
	}
	entries, err := a.cache.TopK(ctx, providers.TrendingBucket(domain), limit)
	if err != nil {
		log.Warn().Err(err).Str("domain", string(domain)).Msg("Failed to read trending keywords")
		return []entities.TrendingKeyword{}
	}
	return toTrending(entries, "", limit)
}

// GetPopularKeywords returns the top keywords of domain starting with prefix.
// Prefixes longer than the bucket prefix are filtered inside the bucket.
func (a *KeywordAggregator) GetPopularKeywords(ctx context.Context, domain entities.Domain, prefix string, limit int) []entities.TrendingKeyword {
	normalized := hangul.NormalizeKeyword(prefix)
	if normalized == "" || limit <= 0 {
		return []entities.TrendingKeyword{}
	}

	bucketPrefix := hangul.Prefix(normalized, a.cfg.PrefixLength)
	k := limit
	if bucketPrefix != normalized {
		k = a.cfg.MaxKeywordsPerPrefix
	}
	entries, err := a.cache.TopK(ctx, providers.KeywordPrefixBucket(domain, bucketPrefix), k)
	if err != nil {
		log.Warn().Err(err).Str("domain", string(domain)).Str("prefix", bucketPrefix).Msg("Failed to read popular keywords")
		return []entities.TrendingKeyword{}
	}
	return toTrending(entries, normalized, limit)
}

func toTrending(entries []entities.RankingEntry, prefix string, limit int) []entities.TrendingKeyword {
	out := make([]entities.TrendingKeyword, 0, min(len(entries), limit))
	for _, e := range entries {
		if len(out) == limit {
			break
		}
		if prefix != "" && !strings.HasPrefix(e.Member, prefix) {
			continue
		}
		out = append(out, entities.TrendingKeyword{Keyword: e.Member, Score: e.Score})
	}
	return out
}
