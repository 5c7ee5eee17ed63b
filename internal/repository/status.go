package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nba_stats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// CompletedKinds returns the kinds already stored for a game
func (db *Database) CompletedKinds(ctx context.Context, gameID string) (map[models.Kind]bool, error) {
	query := `
		SELECT kind FROM game_kind_status
		WHERE game_id = $1 AND status = $2
	`

	rows, err := db.Pool.Query(ctx, query, gameID, models.StatusCompleted)
	if err != nil {
		return nil, &PersistenceError{Op: "completed_kinds", Table: models.TableGameKindStatus, GameID: gameID, Err: err}
	}

	kinds, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &PersistenceError{Op: "completed_kinds", Table: models.TableGameKindStatus, GameID: gameID, Err: err}
	}

	done := make(map[models.Kind]bool, len(kinds))
	for _, k := range kinds {
		done[models.Kind(k)] = true
	}
	return done, nil
}

// RecordKindFailure records that a kind could not be ingested for a game
func (db *Database) RecordKindFailure(ctx context.Context, gameID string, kind models.Kind, runID string, cause error) error {
	start := time.Now()
	err := upsertKindStatus(ctx, db.Pool, gameID, kind, models.StatusFailed, 0, errorText(cause), runID)
	observe("upsert", models.TableGameKindStatus, start, err)
	if err != nil {
		return &PersistenceError{Op: "record_kind_failure", Table: models.TableGameKindStatus, GameID: gameID, Err: err}
	}
	return nil
}

// MarkGameIngested writes the completeness marker for a game
func (db *Database) MarkGameIngested(ctx context.Context, marker models.IngestedGame) error {
	query := `
		INSERT INTO ingested_games (game_id, season_id, run_id, completed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (game_id) DO UPDATE SET
			season_id = EXCLUDED.season_id,
			run_id = EXCLUDED.run_id,
			completed_at = NOW()
	`

	start := time.Now()
	_, err := db.Pool.Exec(ctx, query, marker.GameID, marker.SeasonID, marker.RunID)
	observe("upsert", models.TableIngestedGames, start, err)
	if err != nil {
		return &PersistenceError{Op: "mark_game_ingested", Table: models.TableIngestedGames, GameID: marker.GameID, Err: err}
	}

	log.Debug().Str("game_id", marker.GameID).Msg("Game marked as ingested")
	return nil
}

// StartRun inserts the ledger row for a new run
func (db *Database) StartRun(ctx context.Context, run *models.IngestionRun) error {
	query := `
		INSERT INTO ingestion_runs (run_id, season, status, attempted, succeeded, partially_failed, failed, started_at)
		VALUES ($1, $2, $3, 0, 0, 0, 0, $4)
	`

	if _, err := db.Pool.Exec(ctx, query, run.RunID, run.Season, run.Status, run.StartedAt); err != nil {
		return &PersistenceError{Op: "start_run", Table: models.TableIngestionRuns, Err: fmt.Errorf("failed to start run %s: %w", run.RunID, err)}
	}
	return nil
}

// FinishRun stores the final status and counters of a run
func (db *Database) FinishRun(ctx context.Context, run *models.IngestionRun) error {
	query := `
		UPDATE ingestion_runs
		SET status = $2, attempted = $3, succeeded = $4, partially_failed = $5, failed = $6,
		    error_message = $7, finished_at = $8
		WHERE run_id = $1
	`

	finishedAt := time.Now().UTC()
	if run.FinishedAt != nil {
		finishedAt = *run.FinishedAt
	}

	result, err := db.Pool.Exec(ctx, query,
		run.RunID, run.Status, run.Attempted, run.Succeeded, run.PartiallyFailed, run.Failed,
		sql.NullString{String: run.ErrorMessage, Valid: run.ErrorMessage != ""}, finishedAt,
	)
	if err != nil {
		return &PersistenceError{Op: "finish_run", Table: models.TableIngestionRuns, Err: err}
	}
	if result.RowsAffected() == 0 {
		return &PersistenceError{Op: "finish_run", Table: models.TableIngestionRuns, Err: fmt.Errorf("run not found: run_id=%s", run.RunID)}
	}
	return nil
}

// RecentRuns returns the latest runs for a season, newest first
func (db *Database) RecentRuns(ctx context.Context, season string, limit int) ([]*models.IngestionRun, error) {
	query := `
		SELECT run_id, season, status, attempted, succeeded, partially_failed, failed,
		       COALESCE(error_message, ''), started_at, finished_at
		FROM ingestion_runs
		WHERE season = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := db.Pool.Query(ctx, query, season, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.IngestionRun
	for rows.Next() {
		var run models.IngestionRun
		if err := rows.Scan(
			&run.RunID, &run.Season, &run.Status, &run.Attempted, &run.Succeeded, &run.PartiallyFailed, &run.Failed,
			&run.ErrorMessage, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}
