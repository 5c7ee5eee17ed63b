package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nba_stats/ingestion/internal/app"
	"nba_stats/ingestion/internal/config"
	"nba_stats/ingestion/internal/logging"
	"nba_stats/ingestion/internal/metrics"
	"nba_stats/ingestion/internal/repository"
	"nba_stats/ingestion/internal/scheduler"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	// Load configuration
	cfg := config.MustLoad()

	closer, err := logging.Setup(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		File:        cfg.LogFile,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer closer.Close()

	log.Info().Msg("Starting NBA stats ingestion worker")
	log.Info().
		Str("env", cfg.AppEnv).
		Str("season", cfg.TargetSeason).
		Strs("season_types", cfg.SeasonTypes).
		Msg("Configuration loaded")

	// Cancel on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	if err := a.Store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to create schema")
	}
	log.Info().Msg("Store ready")

	sched := scheduler.NewScheduler(scheduler.Config{
		Season:     cfg.TargetSeason,
		Cron:       cfg.IngestCron,
		RunOnStart: cfg.RunOnStart,
	}, a.Runner())

	var srv *http.Server
	if cfg.EnableMetrics {
		srv = newMetricsServer(cfg.MetricsPort, a, sched)
		go func() {
			log.Info().Int("port", cfg.MetricsPort).Msg("Starting metrics server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	// Update system uptime metric
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	if cfg.EnableScheduler {
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	} else {
		log.Info().Msg("Scheduler disabled, serving metrics only")
	}

	// Keep running until a shutdown signal arrives
	<-ctx.Done()
	log.Info().Msg("Received shutdown signal, gracefully shutting down...")

	if cfg.EnableScheduler {
		sched.Stop()
	}

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}

	log.Info().Msg("Worker shutdown complete")
}

type healthResponse struct {
	Status      string                 `json:"status"`
	Store       string                 `json:"store"`
	Pool        map[string]interface{} `json:"pool,omitempty"`
	Running     bool                   `json:"running"`
	LastStarted *time.Time             `json:"last_started,omitempty"`
	LastRunID   string                 `json:"last_run_id,omitempty"`
	LastError   string                 `json:"last_error,omitempty"`
	Attempted   int                    `json:"attempted"`
	Succeeded   int                    `json:"succeeded"`
	Partial     int                    `json:"partially_failed"`
	Failed      int                    `json:"failed"`
}

func newMetricsServer(port int, a *app.App, sched *scheduler.Scheduler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "healthy", Store: "ok"}
		code := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Store.Health(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Store = err.Error()
			code = http.StatusServiceUnavailable
		}
		if db, ok := a.Store.(*repository.Database); ok {
			resp.Pool = db.PoolStats()
		}

		status := sched.Status()
		resp.Running = status.Running
		if !status.LastStarted.IsZero() {
			resp.LastStarted = &status.LastStarted
		}
		if status.LastSummary != nil {
			resp.LastRunID = status.LastSummary.RunID
			resp.Attempted = status.LastSummary.Attempted
			resp.Succeeded = status.LastSummary.Succeeded
			resp.Partial = status.LastSummary.PartiallyFailed
			resp.Failed = status.LastSummary.Failed
		}
		if status.LastError != nil {
			resp.LastError = status.LastError.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn().Err(err).Msg("Failed to write health response")
		}
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
