package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/providers"
	"github.com/ddeok-labs/search-backend/internal/domain/repositories"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/observability"
	"github.com/ddeok-labs/search-backend/pkg/config"
	"github.com/ddeok-labs/search-backend/pkg/hangul"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Stage names, also used as metric attributes
const (
	StagePrefix  = "prefix"
	StageChosung = "chosung"
	StageTypo    = "typo"
)

// AutocompleteConfig tunes the stage thresholds
type AutocompleteConfig struct {
	MinResultsForTypo int
	MaxTypoDistance   int
	TypoPrefixLength  int
	CachePrefixLength int
	FallbackScanSize  int
	StageTimeout      time.Duration
}

// NewAutocompleteConfig maps the search settings
func NewAutocompleteConfig(cfg config.SearchConfig) AutocompleteConfig {
	return AutocompleteConfig{
		MinResultsForTypo: cfg.MinResultsForTypo,
		MaxTypoDistance:   cfg.MaxTypoDistance,
		TypoPrefixLength:  cfg.TypoPrefixLength,
		CachePrefixLength: cfg.CachePrefixLength,
		FallbackScanSize:  cfg.FallbackScanSize,
		StageTimeout:      cfg.StageTimeout,
	}
}

// DefaultAutocompleteConfig returns the stock thresholds
func DefaultAutocompleteConfig() AutocompleteConfig {
	return AutocompleteConfig{
		MinResultsForTypo: 5,
		MaxTypoDistance:   2,
		TypoPrefixLength:  2,
		CachePrefixLength: 8,
		FallbackScanSize:  500,
		StageTimeout:      300 * time.Millisecond,
	}
}

// candidate is one id contributed by a stage
type candidate struct {
	id       string
	stage    int
	order    int
	distance int
	entity   *entities.AutocompleteEntity
}

// stageResult is what one stage found. err marks the stage as degraded;
// found may still hold a partial contribution.
type stageResult struct {
	found []candidate
	err   error
}

type stage struct {
	name    string
	applies func(keyword string, collected int) bool
	run     func(ctx context.Context, keyword string, limit int) stageResult
}

// AutocompleteService answers prefix, chosung and typo-tolerant autocomplete
// for one domain. It never returns an error: failing stages fall through and
// an empty degraded result is retried against the entity repository alone.
type AutocompleteService struct {
	domain   entities.Domain
	cache    providers.AutocompleteCache
	index    providers.ChosungIndex
	repo     repositories.EntityRepository
	hydrator *Hydrator
	enricher Enricher
	recorder SearchRecorder
	metrics  *observability.Metrics
	cfg      AutocompleteConfig
}

// AutocompleteOption customizes an AutocompleteService
type AutocompleteOption func(*AutocompleteService)

// WithEnricher sets the domain enricher
func WithEnricher(e Enricher) AutocompleteOption {
	return func(s *AutocompleteService) { s.enricher = e }
}

// WithSearchRecorder records every non-blank query
func WithSearchRecorder(r SearchRecorder) AutocompleteOption {
	return func(s *AutocompleteService) { s.recorder = r }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *observability.Metrics) AutocompleteOption {
	return func(s *AutocompleteService) { s.metrics = m }
}

// WithHydrator replaces the default uncached hydrator
func WithHydrator(h *Hydrator) AutocompleteOption {
	return func(s *AutocompleteService) { s.hydrator = h }
}

// NewAutocompleteService creates an orchestrator for domain
func NewAutocompleteService(
	domain entities.Domain,
	cache providers.AutocompleteCache,
	index providers.ChosungIndex,
	repo repositories.EntityRepository,
	cfg AutocompleteConfig,
	opts ...AutocompleteOption,
) *AutocompleteService {
	s := &AutocompleteService{
		domain:   domain,
		cache:    cache,
		index:    index,
		repo:     repo,
		enricher: IdentityEnricher,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hydrator == nil {
		s.hydrator = NewHydrator(repo, 0, 0)
	}
	return s
}

// Domain returns the domain served
func (s *AutocompleteService) Domain() entities.Domain {
	return s.domain
}

// Autocomplete returns at most limit suggestions for keyword. A blank keyword
// or a non-positive limit returns an empty list without calling anything.
// When ctx ends, pending stages are skipped and the partial result returned.
func (s *AutocompleteService) Autocomplete(ctx context.Context, keyword string, limit int) []*entities.Suggestion {
	normalized := hangul.NormalizeKeyword(keyword)
	if normalized == "" || limit <= 0 {
		return []*entities.Suggestion{}
	}

	ctx, span := observability.StartSpan(ctx, "AutocompleteService.Autocomplete")
	defer span.End()
	span.SetAttributes(
		attribute.String("domain", string(s.domain)),
		attribute.String("keyword", normalized),
		attribute.Int("limit", limit),
	)
	start := time.Now()

	if s.recorder != nil {
		s.recorder.LogSearch(ctx, SearchEventCommand{Domain: s.domain, Keyword: keyword})
	}

	suggestions, degraded := s.run(ctx, normalized, limit, s.cachedStages())
	if len(suggestions) == 0 && degraded && ctx.Err() == nil {
		observability.LoggerFromContext(ctx).Warn().
			Str("domain", string(s.domain)).
			Str("keyword", normalized).
			Msg("Autocomplete degraded to empty, retrying against the entity repository")
		s.metrics.RecordFallback(ctx, string(s.domain))
		span.SetAttributes(attribute.Bool("fallback", true))
		suggestions, _ = s.run(ctx, normalized, limit, s.persistentStages())
	}

	span.SetAttributes(attribute.Int("results", len(suggestions)))
	s.metrics.RecordAutocomplete(ctx, string(s.domain), time.Since(start))
	return suggestions
}

// cachedStages consult the ranking cache and the chosung index first
func (s *AutocompleteService) cachedStages() []stage {
	return []stage{
		{name: StagePrefix, applies: always, run: s.cachePrefixStage},
		{name: StageChosung, applies: chosungOnly, run: s.indexChosungStage},
		{name: StageTypo, applies: s.typoApplies, run: s.typoStage},
	}
}

// persistentStages repeat the same logic against the entity repository only
func (s *AutocompleteService) persistentStages() []stage {
	return []stage{
		{name: StagePrefix, applies: always, run: s.repoPrefixStage},
		{name: StageChosung, applies: chosungOnly, run: s.scanChosungStage},
		{name: StageTypo, applies: s.typoApplies, run: s.typoStage},
	}
}

func (s *AutocompleteService) run(ctx context.Context, keyword string, limit int, stages []stage) ([]*entities.Suggestion, bool) {
	var collected []candidate
	seen := make(map[string]struct{})
	degraded := false

	for i, st := range stages {
		if len(collected) >= limit {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if !st.applies(keyword, len(collected)) {
			continue
		}

		stageCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
		res := st.run(stageCtx, keyword, limit)
		cancel()

		added := 0
		for _, c := range res.found {
			if len(collected) >= limit {
				break
			}
			if _, dup := seen[c.id]; dup || c.id == "" {
				continue
			}
			seen[c.id] = struct{}{}
			c.stage = i
			c.order = len(collected)
			collected = append(collected, c)
			added++
		}

		if res.err != nil {
			degraded = true
			log.Warn().Err(res.err).
				Str("domain", string(s.domain)).
				Str("stage", st.name).
				Msg("Autocomplete stage failed, falling through")
		}
		s.metrics.RecordStage(ctx, string(s.domain), st.name, added, res.err != nil)
	}

	if len(collected) == 0 {
		return []*entities.Suggestion{}, degraded
	}

	// Candidates already assembled survive the caller's deadline; the
	// resolve steps below are bounded by StageTimeout alone.
	finishCtx := context.WithoutCancel(ctx)

	suggestions, err := s.hydrate(finishCtx, keyword, collected)
	if err != nil {
		degraded = true
		log.Warn().Err(err).Str("domain", string(s.domain)).Msg("Hydration failed")
	}
	if len(suggestions) == 0 {
		return suggestions, degraded
	}

	enrichCtx, cancel := context.WithTimeout(finishCtx, s.cfg.StageTimeout)
	defer cancel()
	return s.enricher.Enrich(enrichCtx, suggestions), degraded
}

// hydrate resolves candidates, scores them and orders each stage's
// contribution: primary first, then relevance (edit distance for typo
// matches), then discovery order
func (s *AutocompleteService) hydrate(ctx context.Context, keyword string, collected []candidate) ([]*entities.Suggestion, error) {
	ids := make([]string, len(collected))
	resolved := make(map[string]*entities.AutocompleteEntity)
	for i, c := range collected {
		ids[i] = c.id
		if c.entity != nil {
			resolved[c.id] = c.entity
		}
	}

	hydrateCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	records, err := s.hydrator.Hydrate(hydrateCtx, s.domain, ids, resolved)
	cancel()

	type ranked struct {
		candidate
		suggestion *entities.Suggestion
	}
	rows := make([]ranked, 0, len(collected))
	for _, c := range collected {
		e, ok := records[c.id]
		if !ok {
			continue
		}
		rows = append(rows, ranked{candidate: c, suggestion: s.toSuggestion(keyword, c, e)})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.stage != b.stage {
			return a.stage < b.stage
		}
		if a.suggestion.Primary != b.suggestion.Primary {
			return a.suggestion.Primary
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		if a.suggestion.Score != b.suggestion.Score {
			return a.suggestion.Score > b.suggestion.Score
		}
		return a.order < b.order
	})

	out := make([]*entities.Suggestion, len(rows))
	for i, r := range rows {
		out[i] = r.suggestion
	}
	return out, err
}

func (s *AutocompleteService) toSuggestion(keyword string, c candidate, e *entities.AutocompleteEntity) *entities.Suggestion {
	var score int
	switch {
	case hangul.IsChosungOnly(keyword):
		score = Relevance(keyword, hangul.ExtractChosung(e.Name), e.Popularity)
	case c.distance > 0:
		score = PartialRelevance(keyword, e.Name, e.Popularity)
	default:
		score = Relevance(keyword, e.Name, e.Popularity)
	}

	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return &entities.Suggestion{
		ID:         e.ID,
		Name:       e.Name,
		Domain:     s.domain,
		Score:      score,
		Primary:    e.IsPrimary(),
		Attributes: attrs,
	}
}

// cachePrefixStage reads the prefix bucket of keyword. Keywords longer than
// the cached prefix length share the bucket of their truncation and are
// filtered by name.
func (s *AutocompleteService) cachePrefixStage(ctx context.Context, keyword string, limit int) stageResult {
	bucketPrefix := hangul.Prefix(keyword, s.cfg.CachePrefixLength)
	truncated := bucketPrefix != keyword

	k := limit
	if truncated {
		k = max(limit*4, s.cfg.MinResultsForTypo)
	}
	entries, err := s.cache.TopK(ctx, providers.AutocompletePrefixBucket(s.domain, bucketPrefix), k)
	if err != nil {
		return stageResult{err: err}
	}
	if len(entries) == 0 {
		return stageResult{}
	}

	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.Member
	}
	cached, err := s.cache.GetEntities(ctx, s.domain, ids)
	if err != nil && truncated {
		return stageResult{err: err}
	}

	found := make([]candidate, 0, len(ids))
	for _, id := range ids {
		e := cached[id]
		if truncated && (e == nil || !strings.HasPrefix(hangul.NormalizeKeyword(e.Name), keyword)) {
			continue
		}
		found = append(found, candidate{id: id, entity: e})
	}
	return stageResult{found: found, err: err}
}

func (s *AutocompleteService) indexChosungStage(ctx context.Context, keyword string, limit int) stageResult {
	ids, err := s.index.Find(ctx, s.domain, keyword)
	if err != nil {
		return stageResult{err: err}
	}
	found := make([]candidate, len(ids))
	for i, id := range ids {
		found[i] = candidate{id: id}
	}
	return stageResult{found: found}
}

func (s *AutocompleteService) repoPrefixStage(ctx context.Context, keyword string, limit int) stageResult {
	rows, err := s.repo.FindByNamePrefix(ctx, s.domain, keyword, limit)
	if err != nil {
		return stageResult{err: err}
	}
	return stageResult{found: fromEntities(rows)}
}

// scanChosungStage filters the first FallbackScanSize entities of the domain:
// chosung prefix matches first, then inner matches
func (s *AutocompleteService) scanChosungStage(ctx context.Context, keyword string, limit int) stageResult {
	rows, err := s.repo.Page(ctx, s.domain, 0, s.cfg.FallbackScanSize)
	if err != nil {
		return stageResult{err: err}
	}

	var prefix, inner []*entities.AutocompleteEntity
	for _, e := range rows {
		switch {
		case hangul.StartsWithChosung(keyword, e.Name):
			prefix = append(prefix, e)
		case hangul.MatchesChosung(keyword, e.Name):
			inner = append(inner, e)
		}
	}
	return stageResult{found: fromEntities(append(prefix, inner...))}
}

func (s *AutocompleteService) typoApplies(keyword string, collected int) bool {
	return collected < s.cfg.MinResultsForTypo && hangul.Length(keyword) >= 2
}

// typoStage looks up the keyword prefix, then the short typo prefix when that
// finds nothing, and keeps candidates within MaxTypoDistance, closest first
func (s *AutocompleteService) typoStage(ctx context.Context, keyword string, limit int) stageResult {
	rows, err := s.repo.FindByNamePrefix(ctx, s.domain, keyword, limit)
	if err != nil {
		return stageResult{err: err}
	}
	if short := hangul.Prefix(keyword, s.cfg.TypoPrefixLength); len(rows) == 0 && short != keyword {
		rows, err = s.repo.FindByNamePrefix(ctx, s.domain, short, max(limit, s.cfg.FallbackScanSize))
		if err != nil {
			return stageResult{err: err}
		}
	}

	found := make([]candidate, 0, len(rows))
	for _, e := range rows {
		name := hangul.NormalizeKeyword(e.Name)
		if !hangul.MatchesWithTypoTolerance(keyword, name, s.cfg.MaxTypoDistance) {
			continue
		}
		distance := 0
		if !strings.Contains(name, keyword) {
			distance = hangul.EditDistance(keyword, name)
		}
		found = append(found, candidate{id: e.ID, entity: e, distance: distance})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].distance < found[j].distance })
	return stageResult{found: found}
}

func fromEntities(rows []*entities.AutocompleteEntity) []candidate {
	found := make([]candidate, 0, len(rows))
	for _, e := range rows {
		found = append(found, candidate{id: e.ID, entity: e})
	}
	return found
}

func always(string, int) bool { return true }

func chosungOnly(keyword string, _ int) bool { return hangul.IsChosungOnly(keyword) }
