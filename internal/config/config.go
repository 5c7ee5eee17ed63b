package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"nba_stats/ingestion/internal/repository"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// stats.nba.com API
	NBAStatsBaseURL         string        `envconfig:"NBA_STATS_BASE_URL" default:"https://stats.nba.com/stats"`
	NBAStatsTimeout         time.Duration `envconfig:"NBA_STATS_TIMEOUT" default:"45s"`
	NBAStatsRequestInterval time.Duration `envconfig:"NBA_STATS_REQUEST_INTERVAL" default:"600ms"`
	FetchMaxAttempts        int           `envconfig:"FETCH_MAX_ATTEMPTS" default:"3"`
	FetchRetryBaseDelay     time.Duration `envconfig:"FETCH_RETRY_BASE_DELAY" default:"5m"`

	// Ingestion
	TargetSeason       string        `envconfig:"TARGET_SEASON" default:"2024-25"`
	SeasonTypes        []string      `envconfig:"SEASON_TYPES" default:"Regular Season,PlayIn,Playoffs"`
	GamePause          time.Duration `envconfig:"GAME_PAUSE" default:"1500ms"`
	CompletenessTable  string        `envconfig:"COMPLETENESS_TABLE" default:"ingested_games"`
	SkipCompletedKinds bool          `envconfig:"SKIP_COMPLETED_KINDS" default:"true"`

	// Database. DATABASE_URL wins when set; bolt:// selects the embedded store.
	DatabaseURL      string `envconfig:"DATABASE_URL" default:""`
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"nba_stats"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"nba_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" default:""`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	CacheEnabled  bool   `envconfig:"CACHE_ENABLED" default:"false"`
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Caching TTL (in seconds)
	CacheTTLGame     int `envconfig:"CACHE_TTL_GAME" default:"604800"`  // 7 days
	CacheTTLSchedule int `envconfig:"CACHE_TTL_SCHEDULE" default:"600"` // 10 minutes

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE" default:"reports/nba_ingest.log"`

	// Monitoring
	EnableMetrics         bool   `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort           int    `envconfig:"METRICS_PORT" default:"9090"`
	MetricsPushgatewayURL string `envconfig:"METRICS_PUSHGATEWAY_URL" default:""`

	// Scheduler
	EnableScheduler bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	IngestCron      string `envconfig:"INGEST_CRON" default:"0 2 * * *"`
	RunOnStart      bool   `envconfig:"RUN_ON_START" default:"true"`
}

var seasonPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ValidSeason reports whether s looks like "2023-24"
func ValidSeason(s string) bool {
	return seasonPattern.MatchString(s)
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_URL or DATABASE_PASSWORD is required")
	}

	if c.FetchMaxAttempts < 1 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1, got %d", c.FetchMaxAttempts)
	}

	if c.FetchRetryBaseDelay < 0 {
		return fmt.Errorf("FETCH_RETRY_BASE_DELAY must not be negative")
	}

	if c.TargetSeason != "" && !ValidSeason(c.TargetSeason) {
		return fmt.Errorf("TARGET_SEASON must look like 2023-24, got %q", c.TargetSeason)
	}

	if len(c.SeasonTypes) == 0 {
		return fmt.Errorf("SEASON_TYPES must name at least one season type")
	}

	if c.CompletenessTable == "" {
		return fmt.Errorf("COMPLETENESS_TABLE is required")
	}

	return nil
}

// Postgres returns the discrete Postgres settings
func (c *Config) Postgres() repository.Config {
	return repository.Config{
		Host:     c.DatabaseHost,
		Port:     strconv.Itoa(c.DatabasePort),
		User:     c.DatabaseUser,
		Password: c.DatabasePassword,
		Database: c.DatabaseName,
		SSLMode:  c.DatabaseSSLMode,
	}
}

// DatabaseDSN returns the store connection string
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.Postgres().DSN()
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
