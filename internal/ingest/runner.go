package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nba_stats/ingestion/internal/metrics"
	"nba_stats/ingestion/internal/models"
	"nba_stats/ingestion/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Run states, logged at debug level as the loop advances
const (
	stateInit      = "INIT"
	stateResolving = "RESOLVING_MISSING"
	stateFetching  = "FETCHING"
	stateWriting   = "WRITING"
	stateRecorded  = "RECORDED"
	stateDone      = "DONE"
)

// RunSummary aggregates the per-game outcomes of one run
type RunSummary struct {
	RunID           string
	Season          string
	Attempted       int
	Succeeded       int
	PartiallyFailed int
	Failed          int
	Duration        time.Duration
}

// Clean reports whether every attempted game succeeded
func (s RunSummary) Clean() bool {
	return s.PartiallyFailed == 0 && s.Failed == 0
}

func (s *RunSummary) add(outcome Outcome) {
	s.Attempted++
	switch outcome {
	case OutcomeSuccess:
		s.Succeeded++
	case OutcomePartial:
		s.PartiallyFailed++
	default:
		s.Failed++
	}
}

// Options configures a Runner
type Options struct {
	SeasonTypes        []string
	CompletenessTable  string
	SkipCompletedKinds bool
	GamePause          time.Duration
	PushgatewayURL     string
}

// Runner drives one season through resolve and ingest
type Runner struct {
	resolver *Resolver
	ingestor Ingestor
	store    repository.Store
	pause    time.Duration
	pushURL  string

	// sleep waits out the pause between games
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner wires a Runner from its parts
func NewRunner(resolver *Resolver, ingestor Ingestor, store repository.Store, opts Options) *Runner {
	return &Runner{
		resolver: resolver,
		ingestor: ingestor,
		store:    store,
		pause:    opts.GamePause,
		pushURL:  opts.PushgatewayURL,
		sleep:    sleepContext,
	}
}

// New wires a Runner with the default resolver and ingestor
func New(source Source, store repository.Store, opts Options) *Runner {
	resolver := NewResolver(source, store, opts.SeasonTypes, opts.CompletenessTable)
	ingestor := NewGameIngestor(source, store, opts.SkipCompletedKinds)
	return NewRunner(resolver, ingestor, store, opts)
}

// Run ingests every missing game of season. Only a schedule failure or an
// unreadable store is fatal; per-game failures are counted in the summary.
func (r *Runner) Run(ctx context.Context, season string) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{RunID: uuid.NewString(), Season: season}
	logger := log.With().Str("run_id", summary.RunID).Str("season", season).Logger()

	logger.Debug().Str("state", stateInit).Msg("Run state")
	run := &models.IngestionRun{
		RunID:     summary.RunID,
		Season:    season,
		Status:    models.StatusRunning,
		StartedAt: start.UTC(),
	}
	if err := r.store.StartRun(ctx, run); err != nil {
		logger.Warn().Err(err).Msg("Failed to record run start")
	}

	logger.Debug().Str("state", stateResolving).Msg("Run state")
	missing, err := r.resolver.MissingGames(ctx, season)
	if err != nil {
		var serr *ScheduleFetchError
		if errors.As(err, &serr) {
			metrics.RecordError("schedule", "fetch")
		} else {
			metrics.RecordError("resolver", "persistence")
		}
		logger.Error().Err(err).Msg("Failed to resolve missing games, aborting run")

		summary.Duration = time.Since(start)
		r.finish(ctx, run, summary, models.StatusAborted, err)
		return RunSummary{RunID: summary.RunID, Season: season, Duration: summary.Duration}, err
	}
	metrics.SetGamesMissing(season, len(missing))

	logger.Info().Int("missing", len(missing)).Msg("Starting season ingestion")

	var runErr error
	for i, ref := range missing {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run interrupted after %d of %d games: %w", i, len(missing), err)
			break
		}

		logger.Debug().Str("state", stateFetching).Str("game_id", ref.GameID).Msg("Run state")
		result := r.ingestor.IngestGame(ctx, ref, summary.RunID)
		outcome := result.Outcome()
		summary.add(outcome)
		metrics.RecordGame(string(outcome))
		logger.Debug().Str("state", stateRecorded).Str("game_id", ref.GameID).Msg("Run state")

		event := logger.Info()
		if outcome != OutcomeSuccess {
			event = logger.Warn()
		}
		failed := make([]string, 0, len(result.Failed))
		for _, kind := range models.Kinds {
			if _, ok := result.Failed[kind]; ok {
				failed = append(failed, string(kind))
			}
		}
		event.
			Str("game_id", ref.GameID).
			Str("matchup", ref.Matchup).
			Str("outcome", string(outcome)).
			Int("kinds_written", len(result.Succeeded)).
			Int("kinds_skipped", len(result.Skipped)).
			Strs("kinds_failed", failed).
			Dur("duration", result.Duration).
			Int("progress", i+1).
			Int("total", len(missing)).
			Msg("Game processed")

		if i < len(missing)-1 && r.pause > 0 {
			if err := r.sleep(ctx, r.pause); err != nil {
				runErr = fmt.Errorf("run interrupted after %d of %d games: %w", i+1, len(missing), err)
				break
			}
		}
	}

	summary.Duration = time.Since(start)
	status := models.StatusCompleted
	if runErr != nil {
		status = models.StatusAborted
	}
	r.finish(ctx, run, summary, status, runErr)

	logger.Debug().Str("state", stateDone).Msg("Run state")
	logger.Info().
		Int("attempted", summary.Attempted).
		Int("succeeded", summary.Succeeded).
		Int("partially_failed", summary.PartiallyFailed).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("Season ingestion finished")

	return summary, runErr
}

// finish records the run in the ledger and in metrics, best effort
func (r *Runner) finish(ctx context.Context, run *models.IngestionRun, summary RunSummary, status string, cause error) {
	finished := time.Now().UTC()
	run.Status = status
	run.Attempted = summary.Attempted
	run.Succeeded = summary.Succeeded
	run.PartiallyFailed = summary.PartiallyFailed
	run.Failed = summary.Failed
	run.FinishedAt = &finished
	if cause != nil {
		run.ErrorMessage = cause.Error()
	}

	// The run context may already be cancelled; the ledger write still matters
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.store.FinishRun(writeCtx, run); err != nil {
		log.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to record run result")
	}

	metricStatus := "success"
	switch {
	case status == models.StatusAborted:
		metricStatus = "aborted"
	case !summary.Clean():
		metricStatus = "partial"
	}
	metrics.RecordRun(summary.Season, metricStatus, summary.Duration.Seconds())

	if err := metrics.Push(r.pushURL, "nba_ingest"); err != nil {
		log.Warn().Err(err).Msg("Failed to push metrics")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
