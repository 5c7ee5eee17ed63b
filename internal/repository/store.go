package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nba_stats/ingestion/internal/models"
)

// Store is the persistence contract used by the ingestion controller.
// *Database (Postgres) and *BoltStore (embedded file) both implement it.
type Store interface {
	// EnsureSchema creates every table that does not exist yet
	EnsureSchema(ctx context.Context) error
	TableExists(ctx context.Context, table string) (bool, error)
	// ExistingGameIDs returns the distinct game ids stored in table.
	// A table that does not exist yields an empty set.
	ExistingGameIDs(ctx context.Context, table string) (map[string]struct{}, error)
	// InsertRows replaces the rows of one kind for one game and records the
	// kind as completed, atomically.
	InsertRows(ctx context.Context, w models.KindWrite) error
	UpsertGame(ctx context.Context, game *models.Game) error
	GetGame(ctx context.Context, gameID string) (*models.Game, error)
	// UpsertTeams and UpsertPlayers never overwrite a known value with null
	UpsertTeams(ctx context.Context, teams []*models.Team) error
	UpsertPlayers(ctx context.Context, players []*models.Player) error
	// GamesBySeason returns the stored games of one season id in schedule order
	GamesBySeason(ctx context.Context, seasonID string) ([]*models.Game, error)
	CompletedKinds(ctx context.Context, gameID string) (map[models.Kind]bool, error)
	RecordKindFailure(ctx context.Context, gameID string, kind models.Kind, runID string, cause error) error
	MarkGameIngested(ctx context.Context, marker models.IngestedGame) error
	StartRun(ctx context.Context, run *models.IngestionRun) error
	FinishRun(ctx context.Context, run *models.IngestionRun) error
	RecentRuns(ctx context.Context, season string, limit int) ([]*models.IngestionRun, error)
	// ResetTable drops and recreates table. Resetting a kind table also
	// forgets that kind's statuses and every completeness marker.
	ResetTable(ctx context.Context, table string) error
	TableCounts(ctx context.Context) ([]TableCount, error)
	TableColumns(ctx context.Context, table string) ([]string, error)
	Health(ctx context.Context) error
	Close() error
}

// ErrGameNotFound is returned by GetGame for an unknown game id
var ErrGameNotFound = errors.New("game not found")

// TableCount is one line of the db check report
type TableCount struct {
	Table  string
	Exists bool
	Rows   int64
}

// PersistenceError wraps a failed store operation
type PersistenceError struct {
	Op     string
	Table  string
	GameID string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.GameID != "" {
		return fmt.Sprintf("%s on %s for game %s: %v", e.Op, e.Table, e.GameID, e.Err)
	}
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Open connects to the store named by dsn.
// postgres:// and postgresql:// select Postgres; bolt://path and file:path select an embedded file.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err := OpenDatabase(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return db, nil

	case strings.HasPrefix(dsn, "bolt://"), strings.HasPrefix(dsn, "file:"):
		path := strings.TrimPrefix(strings.TrimPrefix(dsn, "bolt://"), "file:")
		if path == "" {
			return nil, fmt.Errorf("missing file path in store connection string")
		}
		store, err := OpenBolt(path)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		scheme, _, _ := strings.Cut(dsn, ":")
		return nil, fmt.Errorf("unsupported store scheme %q", scheme)
	}
}

// lookupTable resolves a table name against the known schema so no
// unknown identifier ever reaches a query
func lookupTable(name string) (models.Table, error) {
	t, ok := models.LookupTable(name)
	if !ok {
		return models.Table{}, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

func lookupGameTable(name string) (models.Table, error) {
	t, err := lookupTable(name)
	if err != nil {
		return t, err
	}
	if !t.HasGameID() {
		return t, fmt.Errorf("table %q is not keyed by game", name)
	}
	return t, nil
}

func kindTable(kind models.Kind) (models.Table, error) {
	if !kind.Valid() {
		return models.Table{}, fmt.Errorf("unknown data kind %q", kind)
	}
	return lookupTable(kind.Table())
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
