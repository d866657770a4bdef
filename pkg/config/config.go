package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	LogLevel    string
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	OTEL        OTELConfig
	Search      SearchConfig
	Aggregation AggregationConfig
	EventLog    EventLogConfig
	Warm        WarmConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// SearchConfig tunes the autocomplete pipeline
type SearchConfig struct {
	MinResultsForTypo  int
	MaxTypoDistance    int
	TypoPrefixLength   int
	CachePrefixLength  int
	FallbackScanSize   int
	StageTimeout       time.Duration
	HydrationCacheSize int
	HydrationCacheTTL  time.Duration
	// LookupBackend selects the system-of-record lookup: "postgres" or "typesense"
	LookupBackend string
	// CacheBackend selects the autocomplete cache: "redis" or "memory"
	CacheBackend string
}

// AggregationConfig tunes the trending keyword job
type AggregationConfig struct {
	WindowMinutes        int
	PrefixLength         int
	SearchWeight         float64
	ClickWeight          float64
	MaxKeywordsPerPrefix int
	TTL                  time.Duration
	Interval             time.Duration
	Parallelism          int
}

// EventLogConfig sizes the background search event writer
type EventLogConfig struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

// WarmConfig controls cache warming
type WarmConfig struct {
	BatchSize int
	Domains   []string
	OnStartup bool
	TTL       time.Duration
	Interval  time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "search"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "search-backend"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Search: SearchConfig{
			MinResultsForTypo:  getEnvAsInt("SEARCH_MIN_RESULTS_FOR_TYPO", 5),
			MaxTypoDistance:    getEnvAsInt("SEARCH_MAX_TYPO_DISTANCE", 2),
			TypoPrefixLength:   getEnvAsInt("SEARCH_TYPO_PREFIX_LENGTH", 2),
			CachePrefixLength:  getEnvAsInt("SEARCH_CACHE_PREFIX_LENGTH", 8),
			FallbackScanSize:   getEnvAsInt("SEARCH_FALLBACK_SCAN_SIZE", 500),
			StageTimeout:       getEnvAsDuration("SEARCH_STAGE_TIMEOUT", 300*time.Millisecond),
			HydrationCacheSize: getEnvAsInt("SEARCH_HYDRATION_CACHE_SIZE", 10000),
			HydrationCacheTTL:  getEnvAsDuration("SEARCH_HYDRATION_CACHE_TTL", 5*time.Minute),
			LookupBackend:      getEnv("SEARCH_LOOKUP_BACKEND", "postgres"),
			CacheBackend:       getEnv("SEARCH_CACHE_BACKEND", "redis"),
		},
		Aggregation: AggregationConfig{
			WindowMinutes:        getEnvAsInt("AGG_WINDOW_MINUTES", 10),
			PrefixLength:         getEnvAsInt("AGG_PREFIX_LENGTH", 2),
			SearchWeight:         getEnvAsFloat("AGG_SEARCH_WEIGHT", 0.7),
			ClickWeight:          getEnvAsFloat("AGG_CLICK_WEIGHT", 1.3),
			MaxKeywordsPerPrefix: getEnvAsInt("AGG_MAX_KEYWORDS_PER_PREFIX", 200),
			TTL:                  getEnvAsDuration("AGG_TTL", 12*time.Hour),
			Interval:             getEnvAsDuration("AGG_INTERVAL", time.Minute),
			Parallelism:          getEnvAsInt("AGG_PARALLELISM", 4),
		},
		EventLog: EventLogConfig{
			Workers:      getEnvAsInt("EVENT_LOG_WORKERS", 4),
			QueueSize:    getEnvAsInt("EVENT_LOG_QUEUE_SIZE", 1024),
			WriteTimeout: getEnvAsDuration("EVENT_LOG_WRITE_TIMEOUT", 2*time.Second),
		},
		Warm: WarmConfig{
			BatchSize: getEnvAsInt("WARM_BATCH_SIZE", 500),
			Domains:   getEnvAsList("WARM_DOMAINS", []string{"food", "store", "group"}),
			OnStartup: getEnvAsBool("WARM_ON_STARTUP", true),
			TTL:       getEnvAsDuration("WARM_TTL", 24*time.Hour),
			Interval:  getEnvAsDuration("WARM_INTERVAL", 0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	positive := map[string]int{
		"SEARCH_TYPO_PREFIX_LENGTH":   c.Search.TypoPrefixLength,
		"SEARCH_CACHE_PREFIX_LENGTH":  c.Search.CachePrefixLength,
		"AGG_WINDOW_MINUTES":          c.Aggregation.WindowMinutes,
		"AGG_PREFIX_LENGTH":           c.Aggregation.PrefixLength,
		"AGG_MAX_KEYWORDS_PER_PREFIX": c.Aggregation.MaxKeywordsPerPrefix,
		"AGG_PARALLELISM":             c.Aggregation.Parallelism,
		"EVENT_LOG_WORKERS":           c.EventLog.Workers,
		"EVENT_LOG_QUEUE_SIZE":        c.EventLog.QueueSize,
		"WARM_BATCH_SIZE":             c.Warm.BatchSize,
	}
	for key, value := range positive {
		if value <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", key, value)
		}
	}
	if c.Search.MaxTypoDistance < 0 {
		return fmt.Errorf("config: SEARCH_MAX_TYPO_DISTANCE must not be negative")
	}
	if c.Aggregation.SearchWeight < 0 || c.Aggregation.ClickWeight < 0 {
		return fmt.Errorf("config: aggregation weights must not be negative")
	}
	switch c.Search.LookupBackend {
	case "postgres", "typesense":
	default:
		return fmt.Errorf("config: unknown SEARCH_LOOKUP_BACKEND %q", c.Search.LookupBackend)
	}
	switch c.Search.CacheBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("config: unknown SEARCH_CACHE_BACKEND %q", c.Search.CacheBackend)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
