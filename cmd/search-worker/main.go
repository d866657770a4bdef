package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ddeok-labs/search-backend/internal/adapters/cache"
	"github.com/ddeok-labs/search-backend/internal/adapters/database"
	"github.com/ddeok-labs/search-backend/internal/adapters/index"
	"github.com/ddeok-labs/search-backend/internal/adapters/search"
	"github.com/ddeok-labs/search-backend/internal/application/services"
	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/providers"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/clients/postgres"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/clients/redis"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/clients/typesense"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/observability"
	"github.com/ddeok-labs/search-backend/pkg/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env when present
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment, cfg.LogLevel)

	if err := run(cfg, warmDomains(cfg.Warm.Domains)); err != nil {
		log.Error().Err(err).Msg("Search worker failed")
		os.Exit(1)
	}
}

// run wires the worker and blocks until a shutdown signal. Startup failures
// are returned so that deferred closers still run.
func run(cfg *config.Config, domains []entities.Domain) error {
	// Set up context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics, continuing without them")
		metrics = nil
	}

	// Initialize clients
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize PostgreSQL client: %w", err)
	}
	defer pgClient.Close()

	autocompleteCache, closeCache, err := newAutocompleteCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	// Initialize adapters. Postgres stays the system of record for warming.
	recordRepo := database.NewEntityAdapter(pgClient)
	lookupRepo := recordRepo
	var indexer services.EntityIndexer
	if cfg.Search.LookupBackend == "typesense" {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			return fmt.Errorf("initialize Typesense client: %w", err)
		}
		if err := tsClient.InitSchema(ctx, domains...); err != nil {
			return fmt.Errorf("initialize Typesense collections: %w", err)
		}
		tsAdapter := search.NewTypesenseEntityAdapter(tsClient)
		lookupRepo = tsAdapter
		indexer = tsAdapter
		log.Info().Msg("Entity lookups served by Typesense")
	}

	chosungIndex := index.NewTrieChosungIndex()
	eventRepo := database.NewSearchKeywordAdapter(pgClient)
	storeRepo := database.NewStoreAdapter(pgClient)
	categoryRepo := database.NewCategoryAdapter(pgClient)

	// Initialize services
	eventLogger := services.NewSearchEventLogger(eventRepo, services.SearchEventLoggerConfig{
		Workers:      cfg.EventLog.Workers,
		QueueSize:    cfg.EventLog.QueueSize,
		WriteTimeout: cfg.EventLog.WriteTimeout,
	}, metrics)
	eventLogger.Start()

	hydrator := services.NewHydrator(lookupRepo, cfg.Search.HydrationCacheSize, cfg.Search.HydrationCacheTTL)
	autocompleteCfg := services.NewAutocompleteConfig(cfg.Search)
	common := []services.AutocompleteOption{
		services.WithHydrator(hydrator),
		services.WithSearchRecorder(eventLogger),
		services.WithMetrics(metrics),
	}

	foodAutocomplete := services.NewAutocompleteService(entities.DomainFood, autocompleteCache, chosungIndex, lookupRepo, autocompleteCfg,
		append(common, services.WithEnricher(services.NewFoodEnricher(storeRepo, categoryRepo)))...)
	storeAutocomplete := services.NewAutocompleteService(entities.DomainStore, autocompleteCache, chosungIndex, lookupRepo, autocompleteCfg, common...)
	groupAutocomplete := services.NewAutocompleteService(entities.DomainGroup, autocompleteCache, chosungIndex, lookupRepo, autocompleteCfg, common...)
	unified := services.NewUnifiedAutocompleteService(foodAutocomplete, storeAutocomplete)

	aggregator := services.NewKeywordAggregator(eventRepo, autocompleteCache,
		services.NewKeywordAggregatorConfig(cfg.Aggregation),
		services.WithAggregatorMetrics(metrics))

	warmer := services.NewCacheWarmingService(recordRepo, autocompleteCache, chosungIndex, cfg.Warm.TTL)
	if indexer != nil {
		warmer.WithIndexer(indexer)
	}

	core := services.NewSearchCore(
		[]*services.AutocompleteService{foodAutocomplete, storeAutocomplete, groupAutocomplete},
		unified, aggregator, eventLogger, warmer,
	)

	// The chosung index and the memory cache live in this process
	if !cfg.Warm.OnStartup && cfg.Search.CacheBackend == "redis" {
		log.Warn().Msg("WARM_ON_STARTUP=false, chosung lookups stay empty until the first periodic warm")
	}
	if cfg.Warm.OnStartup || cfg.Search.CacheBackend == "memory" {
		for _, domain := range domains {
			if _, err := core.WarmCache(ctx, domain, cfg.Warm.BatchSize); err != nil {
				log.Error().Err(err).Str("domain", string(domain)).Msg("Startup warm failed")
			}
		}
	}

	aggregator.Start(ctx, cfg.Aggregation.Interval)
	if cfg.Warm.Interval > 0 {
		warmer.StartPeriodicWarming(ctx, domains, cfg.Warm.BatchSize, cfg.Warm.Interval)
	}

	log.Info().
		Str("lookup_backend", cfg.Search.LookupBackend).
		Str("cache_backend", cfg.Search.CacheBackend).
		Int("domains", len(domains)).
		Msg("Search worker started")

	<-ctx.Done()
	log.Info().Msg("Shutting down search worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eventLogger.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Int64("dropped", eventLogger.Dropped()).Msg("Search events were not fully drained")
	}
	log.Info().Msg("Search worker exited")
	return nil
}

// newAutocompleteCache returns the configured cache and its closer. Redis is
// wrapped in a circuit breaker.
func newAutocompleteCache(cfg *config.Config) (providers.AutocompleteCache, func(), error) {
	if cfg.Search.CacheBackend == "memory" {
		log.Warn().Msg("Using in-process autocomplete cache, rankings are not shared between instances")
		return cache.NewMemoryRankingCache(cfg.Search.CachePrefixLength), func() {}, nil
	}

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize Redis client: %w", err)
	}
	adapter := cache.NewRedisRankingAdapter(redisClient, cfg.Search.CachePrefixLength)
	return cache.NewBreakerRankingCache(adapter, cache.DefaultBreakerSettings()), func() {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Redis client")
		}
	}, nil
}

func warmDomains(names []string) []entities.Domain {
	domains := make([]entities.Domain, 0, len(names))
	for _, name := range names {
		d, err := entities.ParseDomain(name)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid WARM_DOMAINS")
		}
		domains = append(domains, d)
	}
	return domains
}
