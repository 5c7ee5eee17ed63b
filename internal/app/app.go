// Package app wires configuration into the client, cache, store and runner
// shared by the worker and the ingest CLI.
package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"nba_stats/ingestion/internal/cache"
	"nba_stats/ingestion/internal/client"
	"nba_stats/ingestion/internal/config"
	"nba_stats/ingestion/internal/ingest"
	"nba_stats/ingestion/internal/repository"

	"github.com/rs/zerolog/log"
)

// App holds the long-lived dependencies of one process
type App struct {
	Config *config.Config
	Store  repository.Store
	Client *client.Client
	Cache  *cache.RedisCache
}

// OpenStore connects to the configured store without building the rest
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	store, err := repository.Open(ctx, cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

// New opens the store, connects the optional Redis cache and builds the API client.
// A cache that cannot be reached is logged and skipped.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Store: store}

	var payloadCache client.Cache
	if cfg.CacheEnabled {
		redisCache, err := cache.NewRedisCache(cache.Config{
			Host:     cfg.RedisHost,
			Port:     strconv.Itoa(cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		} else {
			a.Cache = redisCache
			payloadCache = redisCache
		}
	}

	a.Client = client.NewClient(client.Options{
		BaseURL:         cfg.NBAStatsBaseURL,
		Timeout:         cfg.NBAStatsTimeout,
		MaxAttempts:     cfg.FetchMaxAttempts,
		BaseDelay:       cfg.FetchRetryBaseDelay,
		RequestInterval: cfg.NBAStatsRequestInterval,
		Cache:           payloadCache,
		GameTTL:         time.Duration(cfg.CacheTTLGame) * time.Second,
		ScheduleTTL:     time.Duration(cfg.CacheTTLSchedule) * time.Second,
	})
	log.Info().
		Str("base_url", cfg.NBAStatsBaseURL).
		Int("max_attempts", cfg.FetchMaxAttempts).
		Dur("retry_base_delay", cfg.FetchRetryBaseDelay).
		Bool("cache", a.Cache != nil).
		Msg("Stats API client initialized")

	return a, nil
}

// Runner builds a season runner over the app's client and store
func (a *App) Runner() *ingest.Runner {
	return ingest.New(a.Client, a.Store, a.RunnerOptions())
}

// RunnerOptions maps configuration onto runner options
func (a *App) RunnerOptions() ingest.Options {
	return ingest.Options{
		SeasonTypes:        a.Config.SeasonTypes,
		CompletenessTable:  a.Config.CompletenessTable,
		SkipCompletedKinds: a.Config.SkipCompletedKinds,
		GamePause:          a.Config.GamePause,
		PushgatewayURL:     a.Config.MetricsPushgatewayURL,
	}
}

// Close releases the cache and the store
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close cache")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}
}
