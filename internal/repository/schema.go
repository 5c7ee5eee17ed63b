package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nba_stats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// Secondary indexes created alongside the tables
var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_games_season ON games (season_id, game_date)`,
	`CREATE INDEX IF NOT EXISTS idx_game_kind_status_kind ON game_kind_status (kind, status)`,
	`CREATE INDEX IF NOT EXISTS idx_ingestion_runs_season ON ingestion_runs (season, started_at DESC)`,
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// createTableSQL renders the CREATE TABLE statement for t
func createTableSQL(t models.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quoteIdent(t.Name))
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "\t%s %s,\n", quoteIdent(c.Name), c.Type)
	}

	pk := make([]string, len(t.PrimaryKey))
	for i, col := range t.PrimaryKey {
		pk[i] = quoteIdent(col)
	}
	fmt.Fprintf(&b, "\tPRIMARY KEY (%s)\n)", strings.Join(pk, ", "))
	return b.String()
}

// EnsureSchema creates every table and index that does not exist yet
func (db *Database) EnsureSchema(ctx context.Context) error {
	start := time.Now()

	for _, t := range models.Schema() {
		if _, err := db.Pool.Exec(ctx, createTableSQL(t)); err != nil {
			observe("create_table", t.Name, start, err)
			return &PersistenceError{Op: "create_table", Table: t.Name, Err: err}
		}
	}
	for _, stmt := range indexStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	observe("create_table", "all", start, nil)
	log.Info().Int("tables", len(models.Schema())).Msg("Schema ensured")
	return nil
}

// TableExists reports whether table exists in the current schema
func (db *Database) TableExists(ctx context.Context, table string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)
	`

	var exists bool
	if err := db.Pool.QueryRow(ctx, query, table).Scan(&exists); err != nil {
		return false, &PersistenceError{Op: "exists_table", Table: table, Err: err}
	}
	return exists, nil
}

// TableColumns returns the column names of table in ordinal order
func (db *Database) TableColumns(ctx context.Context, table string) ([]string, error) {
	query := `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := db.Pool.Query(ctx, query, table)
	if err != nil {
		return nil, &PersistenceError{Op: "table_columns", Table: table, Err: err}
	}

	columns, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &PersistenceError{Op: "table_columns", Table: table, Err: err}
	}
	return columns, nil
}

// TableCounts reports the row count of every known table
func (db *Database) TableCounts(ctx context.Context) ([]TableCount, error) {
	var counts []TableCount
	for _, t := range models.Schema() {
		exists, err := db.TableExists(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		count := TableCount{Table: t.Name, Exists: exists}
		if exists {
			query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(t.Name))
			if err := db.Pool.QueryRow(ctx, query).Scan(&count.Rows); err != nil {
				return nil, &PersistenceError{Op: "count", Table: t.Name, Err: err}
			}
		}
		counts = append(counts, count)
	}
	return counts, nil
}

// ResetTable drops and recreates table
func (db *Database) ResetTable(ctx context.Context, table string) error {
	def, err := lookupTable(table)
	if err != nil {
		return &PersistenceError{Op: "reset_table", Table: table, Err: err}
	}
	kind := models.Kind(table)

	start := time.Now()
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return &PersistenceError{Op: "reset_table", Table: table, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback(ctx)

	statements := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(def.Name)),
		createTableSQL(def),
	}
	if kind.Valid() {
		status, _ := models.LookupTable(models.TableGameKindStatus)
		marker, _ := models.LookupTable(models.TableIngestedGames)
		statements = append(statements, createTableSQL(status), createTableSQL(marker))
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			observe("reset_table", table, start, err)
			return &PersistenceError{Op: "reset_table", Table: table, Err: err}
		}
	}

	var cleared int64
	if kind.Valid() {
		if _, err := tx.Exec(ctx, `DELETE FROM game_kind_status WHERE kind = $1`, string(kind)); err != nil {
			return &PersistenceError{Op: "reset_table", Table: models.TableGameKindStatus, Err: err}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM ingested_games`)
		if err != nil {
			return &PersistenceError{Op: "reset_table", Table: models.TableIngestedGames, Err: err}
		}
		cleared = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		observe("reset_table", table, start, err)
		return &PersistenceError{Op: "reset_table", Table: table, Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	observe("reset_table", table, start, nil)

	log.Warn().
		Str("table", table).
		Int64("markers_cleared", cleared).
		Msg("Table dropped and recreated")
	return nil
}
