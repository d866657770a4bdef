package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ddeok-labs/search-backend/internal/adapters/cache"
	"github.com/ddeok-labs/search-backend/internal/adapters/database"
	"github.com/ddeok-labs/search-backend/internal/adapters/index"
	"github.com/ddeok-labs/search-backend/internal/adapters/search"
	"github.com/ddeok-labs/search-backend/internal/application/services"
	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/clients/postgres"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/clients/redis"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/clients/typesense"
	"github.com/ddeok-labs/search-backend/internal/infrastructure/observability"
	"github.com/ddeok-labs/search-backend/pkg/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	var domainFlag string
	var batch int
	var all bool
	flag.StringVar(&domainFlag, "domain", "", "domain to warm (food, store, group)")
	flag.IntVar(&batch, "batch", 0, "rows per page, defaults to WARM_BATCH_SIZE")
	flag.BoolVar(&all, "all", false, "warm every domain in WARM_DOMAINS")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger("search-warm", cfg.Environment, cfg.LogLevel)

	if cfg.Search.CacheBackend != "redis" {
		log.Fatal().Str("cache_backend", cfg.Search.CacheBackend).Msg("Warming from a separate process requires the redis cache backend")
	}
	if batch <= 0 {
		batch = cfg.Warm.BatchSize
	}

	domains, err := resolveDomains(all, domainFlag, cfg.Warm.Domains)
	if errors.Is(err, errNoDomain) {
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid domain selection")
	}

	if err := run(cfg, domains, batch); err != nil {
		log.Error().Err(err).Msg("Warm failed")
		os.Exit(1)
	}
}

var errNoDomain = errors.New("either -domain or -all is required")

// resolveDomains picks the domains to warm: every configured domain with -all,
// otherwise the single -domain
func resolveDomains(all bool, domainFlag string, configured []string) ([]entities.Domain, error) {
	if !all {
		if domainFlag == "" {
			return nil, errNoDomain
		}
		d, err := entities.ParseDomain(domainFlag)
		if err != nil {
			return nil, fmt.Errorf("-domain: %w", err)
		}
		return []entities.Domain{d}, nil
	}

	domains := make([]entities.Domain, 0, len(configured))
	for _, name := range configured {
		d, err := entities.ParseDomain(name)
		if err != nil {
			return nil, fmt.Errorf("WARM_DOMAINS: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, nil
}

// run warms domains and returns once every deferred client has closed
func run(cfg *config.Config, domains []entities.Domain, batch int) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize PostgreSQL client: %w", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("initialize Redis client: %w", err)
	}
	defer redisClient.Close()

	// Only Redis (and Typesense) are refreshed. The index built here is
	// discarded; a running worker's chosung index changes on its own warm.
	warmer := services.NewCacheWarmingService(
		database.NewEntityAdapter(pgClient),
		cache.NewRedisRankingAdapter(redisClient, cfg.Search.CachePrefixLength),
		index.NewTrieChosungIndex(),
		cfg.Warm.TTL,
	)

	if cfg.Search.LookupBackend == "typesense" {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			return fmt.Errorf("initialize Typesense client: %w", err)
		}
		if err := tsClient.InitSchema(ctx, domains...); err != nil {
			return fmt.Errorf("initialize Typesense collections: %w", err)
		}
		warmer.WithIndexer(search.NewTypesenseEntityAdapter(tsClient))
	}

	results, err := warmer.WarmAll(ctx, domains, batch)
	for _, r := range results {
		if r == nil {
			continue
		}
		log.Info().
			Str("domain", string(r.Domain)).
			Int("entities", r.Entities).
			Int("pages", r.Pages).
			Dur("duration", r.Duration).
			Msg("Warm complete")
	}
	return err
}
