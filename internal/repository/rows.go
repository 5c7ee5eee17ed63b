package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nba_stats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// ExistingGameIDs returns the distinct game ids present in table
func (db *Database) ExistingGameIDs(ctx context.Context, table string) (map[string]struct{}, error) {
	def, err := lookupGameTable(table)
	if err != nil {
		return nil, &PersistenceError{Op: "query_existing_game_ids", Table: table, Err: err}
	}

	exists, err := db.TableExists(ctx, def.Name)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{})
	if !exists {
		log.Warn().Str("table", def.Name).Msg("Completeness table does not exist, treating every game as missing")
		return ids, nil
	}

	start := time.Now()
	rows, err := db.Pool.Query(ctx, fmt.Sprintf("SELECT DISTINCT game_id FROM %s", quoteIdent(def.Name)))
	if err != nil {
		observe("select", def.Name, start, err)
		return nil, &PersistenceError{Op: "query_existing_game_ids", Table: def.Name, Err: err}
	}

	gameIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	observe("select", def.Name, start, err)
	if err != nil {
		return nil, &PersistenceError{Op: "query_existing_game_ids", Table: def.Name, Err: err}
	}

	for _, id := range gameIDs {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// InsertRows replaces one game's rows in the kind table and records the kind
// as completed in a single transaction
func (db *Database) InsertRows(ctx context.Context, w models.KindWrite) error {
	def, err := kindTable(w.Kind)
	if err != nil {
		return &PersistenceError{Op: "insert_rows", Table: string(w.Kind), GameID: w.GameID, Err: err}
	}
	columns := def.ColumnNames()

	persistErr := func(err error) error {
		return &PersistenceError{Op: "insert_rows", Table: def.Name, GameID: w.GameID, Err: err}
	}

	start := time.Now()
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return persistErr(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	deleted, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE game_id = $1", quoteIdent(def.Name)), w.GameID)
	if err != nil {
		return persistErr(fmt.Errorf("failed to clear existing rows: %w", err))
	}

	if len(w.Rows) > 0 {
		source := pgx.CopyFromSlice(len(w.Rows), func(i int) ([]any, error) {
			values := w.Rows[i].Values()
			if len(values) != len(columns) {
				return nil, fmt.Errorf("row %d has %d values, table has %d columns", i, len(values), len(columns))
			}
			return values, nil
		})

		copied, err := tx.CopyFrom(ctx, pgx.Identifier{def.Name}, columns, source)
		if err != nil {
			observe("insert", def.Name, start, err)
			return persistErr(fmt.Errorf("failed to copy rows: %w", err))
		}
		if int(copied) != len(w.Rows) {
			return persistErr(fmt.Errorf("copied %d of %d rows", copied, len(w.Rows)))
		}
	}

	if err := upsertKindStatus(ctx, tx, w.GameID, w.Kind, models.StatusCompleted, len(w.Rows), "", w.RunID); err != nil {
		return persistErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		observe("insert", def.Name, start, err)
		return persistErr(fmt.Errorf("failed to commit transaction: %w", err))
	}
	observe("insert", def.Name, start, nil)

	log.Debug().
		Str("game_id", w.GameID).
		Str("kind", string(w.Kind)).
		Int("rows", len(w.Rows)).
		Int64("replaced", deleted.RowsAffected()).
		Msg("Rows written")

	return nil
}

// execer is satisfied by both the pool and a transaction
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func upsertKindStatus(ctx context.Context, tx execer, gameID string, kind models.Kind, status string, rowCount int, message, runID string) error {
	query := `
		INSERT INTO game_kind_status (game_id, kind, status, row_count, error_message, run_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (game_id, kind) DO UPDATE SET
			status = EXCLUDED.status,
			row_count = EXCLUDED.row_count,
			error_message = EXCLUDED.error_message,
			run_id = EXCLUDED.run_id,
			updated_at = NOW()
	`

	_, err := tx.Exec(ctx, query,
		gameID, string(kind), status, rowCount,
		sql.NullString{String: message, Valid: message != ""},
		sql.NullString{String: runID, Valid: runID != ""},
	)
	if err != nil {
		return fmt.Errorf("failed to record %s status: %w", status, err)
	}
	return nil
}
