package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nba_stats/ingestion/internal/ingest"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// SeasonRunner runs one ingestion pass for a season. *ingest.Runner implements it.
type SeasonRunner interface {
	Run(ctx context.Context, season string) (ingest.RunSummary, error)
}

// Config controls when the season ingestion runs
type Config struct {
	Season     string
	Cron       string
	RunOnStart bool
}

// Status describes the most recent scheduled run
type Status struct {
	Running     bool
	LastStarted time.Time
	LastSummary *ingest.RunSummary
	LastError   error
}

// Scheduler runs the season ingestion on a cron schedule.
// Overlapping triggers are skipped while a run is still in progress.
type Scheduler struct {
	cfg    Config
	runner SeasonRunner
	cron   *cron.Cron
	job    cron.Job

	mu     sync.Mutex
	status Status
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg Config, runner SeasonRunner) *Scheduler {
	logger := cronLogger{}
	s := &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger))),
	}
	s.job = cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(s.runOnce))
	return s
}

// Start registers the ingestion job and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if _, err := s.cron.AddJob(s.cfg.Cron, s.job); err != nil {
		return fmt.Errorf("failed to schedule season ingestion: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.cfg.Cron).
		Str("season", s.cfg.Season).
		Msg("Season ingestion scheduled")

	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.job.Run()
		}()
	}

	return nil
}

// Stop cancels any run in progress and waits for it to return
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	log.Info().Msg("Scheduler stopped")
}

// Status returns a snapshot of the latest run
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Trigger runs the ingestion now, unless a run is already in progress
func (s *Scheduler) Trigger() {
	s.job.Run()
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	s.status.Running = true
	s.status.LastStarted = time.Now()
	s.mu.Unlock()

	log.Info().Str("season", s.cfg.Season).Msg("Running scheduled season ingestion")
	summary, err := s.runner.Run(ctx, s.cfg.Season)
	if err != nil {
		log.Error().Err(err).Str("season", s.cfg.Season).Msg("Scheduled season ingestion failed")
	}

	s.mu.Lock()
	s.status.Running = false
	s.status.LastSummary = &summary
	s.status.LastError = err
	s.mu.Unlock()
}

// cronLogger routes cron's own messages through zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
