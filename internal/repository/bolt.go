package repository

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"nba_stats/ingestion/internal/models"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// bucketMeta stores the column list of every created table
	bucketMeta = "_tables"
	keySep     = "|"
)

// BoltStore is the embedded single-file Store.
// Each table is a bucket keyed by its primary key columns; rows are JSON objects.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// OpenBolt opens or creates the store file at path
func OpenBolt(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketMeta)); err != nil {
			return fmt.Errorf("creating meta bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("Opened embedded store")
	return &BoltStore{db: db, path: path}, nil
}

// Close closes the store file
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Health checks that the store file is readable
func (s *BoltStore) Health(ctx context.Context) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(bucketMeta)) == nil {
			return fmt.Errorf("meta bucket missing")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}

func createBucket(tx *bolt.Tx, t models.Table) (*bolt.Bucket, error) {
	b, err := tx.CreateBucketIfNotExists([]byte(t.Name))
	if err != nil {
		return nil, fmt.Errorf("creating %s bucket: %w", t.Name, err)
	}
	columns, err := json.Marshal(t.ColumnNames())
	if err != nil {
		return nil, fmt.Errorf("marshaling %s columns: %w", t.Name, err)
	}
	if err := tx.Bucket([]byte(bucketMeta)).Put([]byte(t.Name), columns); err != nil {
		return nil, fmt.Errorf("recording %s columns: %w", t.Name, err)
	}
	return b, nil
}

// EnsureSchema creates a bucket for every table that does not exist yet
func (s *BoltStore) EnsureSchema(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, t := range models.Schema() {
			if tx.Bucket([]byte(t.Name)) != nil {
				continue
			}
			if _, err := createBucket(tx, t); err != nil {
				return &PersistenceError{Op: "create_table", Table: t.Name, Err: err}
			}
		}
		return nil
	})
}

// TableExists reports whether the table's bucket exists
func (s *BoltStore) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket([]byte(table)) != nil
		return nil
	})
	return exists, err
}

// TableColumns returns the column names recorded when the table was created
func (s *BoltStore) TableColumns(ctx context.Context, table string) ([]string, error) {
	var columns []string
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(table)) == nil {
			return nil
		}
		data := tx.Bucket([]byte(bucketMeta)).Get([]byte(table))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &columns)
	})
	if err != nil {
		return nil, &PersistenceError{Op: "table_columns", Table: table, Err: err}
	}
	return columns, nil
}

// TableCounts reports the number of keys in every known table
func (s *BoltStore) TableCounts(ctx context.Context) ([]TableCount, error) {
	var counts []TableCount
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, t := range models.Schema() {
			count := TableCount{Table: t.Name}
			if b := tx.Bucket([]byte(t.Name)); b != nil {
				count.Exists = true
				count.Rows = int64(b.Stats().KeyN)
			}
			counts = append(counts, count)
		}
		return nil
	})
	return counts, err
}

// ExistingGameIDs returns the distinct game ids present in table
func (s *BoltStore) ExistingGameIDs(ctx context.Context, table string) (map[string]struct{}, error) {
	def, err := lookupGameTable(table)
	if err != nil {
		return nil, &PersistenceError{Op: "query_existing_game_ids", Table: table, Err: err}
	}

	ids := make(map[string]struct{})
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(def.Name))
		if b == nil {
			log.Warn().Str("table", def.Name).Msg("Completeness table does not exist, treating every game as missing")
			return nil
		}
		// game_id leads every game-keyed primary key
		return b.ForEach(func(k, _ []byte) error {
			gameID, _, _ := strings.Cut(string(k), keySep)
			ids[gameID] = struct{}{}
			return nil
		})
	})
	if err != nil {
		return nil, &PersistenceError{Op: "query_existing_game_ids", Table: def.Name, Err: err}
	}
	return ids, nil
}

// InsertRows replaces one game's rows in the kind bucket and records the kind
// as completed in a single bolt transaction
func (s *BoltStore) InsertRows(ctx context.Context, w models.KindWrite) error {
	def, err := kindTable(w.Kind)
	if err != nil {
		return &PersistenceError{Op: "insert_rows", Table: string(w.Kind), GameID: w.GameID, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &PersistenceError{Op: "insert_rows", Table: def.Name, GameID: w.GameID, Err: err}
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(def.Name))
		if b == nil {
			return fmt.Errorf("table %s does not exist", def.Name)
		}
		if err := deletePrefix(b, gamePrefix(w.GameID)); err != nil {
			return fmt.Errorf("clearing existing rows: %w", err)
		}

		for i, row := range w.Rows {
			key, value, err := encodeRow(def, row.Values())
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			if err := b.Put(key, value); err != nil {
				return fmt.Errorf("writing row %d: %w", i, err)
			}
		}

		return putKindStatus(tx, models.KindStatus{
			GameID:    w.GameID,
			Kind:      w.Kind,
			Status:    models.StatusCompleted,
			RowCount:  len(w.Rows),
			RunID:     w.RunID,
			UpdatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return &PersistenceError{Op: "insert_rows", Table: def.Name, GameID: w.GameID, Err: err}
	}

	log.Debug().
		Str("game_id", w.GameID).
		Str("kind", string(w.Kind)).
		Int("rows", len(w.Rows)).
		Msg("Rows written")
	return nil
}

// UpsertGame inserts or replaces a games row
func (s *BoltStore) UpsertGame(ctx context.Context, game *models.Game) error {
	def, _ := models.LookupTable(models.TableGames)
	game.UpdatedAt = time.Now().UTC()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(def.Name))
		if b == nil {
			return fmt.Errorf("table %s does not exist", def.Name)
		}
		key, value, err := encodeRow(def, game.Values())
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
	if err != nil {
		return &PersistenceError{Op: "upsert_game", Table: def.Name, GameID: game.GameID, Err: err}
	}
	return nil
}

// storedTeam and storedPlayer are dimension rows as encodeRow writes them
type storedTeam struct {
	TeamID       int64   `json:"team_id"`
	Abbreviation *string `json:"abbreviation"`
	Nickname     *string `json:"nickname"`
	City         *string `json:"city"`
}

func (t storedTeam) team() *models.Team {
	return &models.Team{
		TeamID:       t.TeamID,
		Abbreviation: fromPtr(t.Abbreviation),
		Nickname:     fromPtr(t.Nickname),
		City:         fromPtr(t.City),
	}
}

type storedPlayer struct {
	PlayerID  int64   `json:"player_id"`
	FullName  *string `json:"full_name"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	TeamID    *int64  `json:"team_id"`
}

func (p storedPlayer) player() *models.Player {
	player := &models.Player{
		PlayerID:  p.PlayerID,
		FullName:  fromPtr(p.FullName),
		FirstName: fromPtr(p.FirstName),
		LastName:  fromPtr(p.LastName),
	}
	if p.TeamID != nil {
		player.TeamID = sql.NullInt64{Int64: *p.TeamID, Valid: true}
	}
	return player
}

func fromPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// UpsertTeams merges teams into their stored rows
func (s *BoltStore) UpsertTeams(ctx context.Context, teams []*models.Team) error {
	if len(teams) == 0 {
		return nil
	}
	def, _ := models.LookupTable(models.TableTeams)
	now := time.Now().UTC()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(def.Name))
		if b == nil {
			return fmt.Errorf("table %s does not exist", def.Name)
		}
		for _, team := range teams {
			key := []byte(strconv.FormatInt(team.TeamID, 10) + keySep)
			merged := team
			if data := b.Get(key); data != nil {
				var stored storedTeam
				if err := json.Unmarshal(data, &stored); err != nil {
					return err
				}
				merged = stored.team()
				merged.Merge(team)
			}
			merged.UpdatedAt = now
			team.UpdatedAt = now

			_, value, err := encodeRow(def, merged.Values())
			if err != nil {
				return err
			}
			if err := b.Put(key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "upsert_teams", Table: def.Name, Err: err}
	}
	return nil
}

// UpsertPlayers merges players into their stored rows
func (s *BoltStore) UpsertPlayers(ctx context.Context, players []*models.Player) error {
	if len(players) == 0 {
		return nil
	}
	def, _ := models.LookupTable(models.TablePlayers)
	now := time.Now().UTC()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(def.Name))
		if b == nil {
			return fmt.Errorf("table %s does not exist", def.Name)
		}
		for _, player := range players {
			key := []byte(strconv.FormatInt(player.PlayerID, 10) + keySep)
			merged := player
			if data := b.Get(key); data != nil {
				var stored storedPlayer
				if err := json.Unmarshal(data, &stored); err != nil {
					return err
				}
				merged = stored.player()
				merged.Merge(player)
			}
			merged.UpdatedAt = now
			player.UpdatedAt = now

			_, value, err := encodeRow(def, merged.Values())
			if err != nil {
				return err
			}
			if err := b.Put(key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "upsert_players", Table: def.Name, Err: err}
	}
	return nil
}

// storedGame is a games row as encodeRow writes it
type storedGame struct {
	GameID     string     `json:"game_id"`
	GameDate   *time.Time `json:"game_date"`
	SeasonID   *string    `json:"season_id"`
	SeasonType *string    `json:"season_type"`
	Matchup    *string    `json:"matchup"`
	HomeTeamID *int64     `json:"home_team_id"`
	AwayTeamID *int64     `json:"away_team_id"`
	HomePoints *int32     `json:"home_pts"`
	AwayPoints *int32     `json:"away_pts"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (g storedGame) game() *models.Game {
	game := &models.Game{GameID: g.GameID, UpdatedAt: g.UpdatedAt}
	if g.GameDate != nil {
		game.GameDate = sql.NullTime{Time: *g.GameDate, Valid: true}
	}
	if g.SeasonID != nil {
		game.SeasonID = sql.NullString{String: *g.SeasonID, Valid: true}
	}
	if g.SeasonType != nil {
		game.SeasonType = sql.NullString{String: *g.SeasonType, Valid: true}
	}
	if g.Matchup != nil {
		game.Matchup = sql.NullString{String: *g.Matchup, Valid: true}
	}
	if g.HomeTeamID != nil {
		game.HomeTeamID = sql.NullInt64{Int64: *g.HomeTeamID, Valid: true}
	}
	if g.AwayTeamID != nil {
		game.AwayTeamID = sql.NullInt64{Int64: *g.AwayTeamID, Valid: true}
	}
	if g.HomePoints != nil {
		game.HomePoints = sql.NullInt32{Int32: *g.HomePoints, Valid: true}
	}
	if g.AwayPoints != nil {
		game.AwayPoints = sql.NullInt32{Int32: *g.AwayPoints, Valid: true}
	}
	return game
}

// GetGame retrieves a game by its stats.nba.com game id
func (s *BoltStore) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	var stored *storedGame
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(models.TableGames))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(gameID + keySep))
		if data == nil {
			return nil
		}
		stored = &storedGame{}
		return json.Unmarshal(data, stored)
	})
	if err != nil {
		return nil, &PersistenceError{Op: "get_game", Table: models.TableGames, GameID: gameID, Err: err}
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: game_id=%s", ErrGameNotFound, gameID)
	}
	return stored.game(), nil
}

// GamesBySeason retrieves the stored games of one season id in schedule order
func (s *BoltStore) GamesBySeason(ctx context.Context, seasonID string) ([]*models.Game, error) {
	var games []*models.Game
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(models.TableGames))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedGame
			if err := json.Unmarshal(v, &stored); err != nil {
				return err
			}
			if stored.SeasonID != nil && *stored.SeasonID == seasonID {
				games = append(games, stored.game())
			}
			return nil
		})
	})
	if err != nil {
		return nil, &PersistenceError{Op: "games_by_season", Table: models.TableGames, Err: err}
	}

	sort.SliceStable(games, func(i, j int) bool {
		a, b := games[i].GameDate.Time, games[j].GameDate.Time
		if !a.Equal(b) {
			return a.Before(b)
		}
		return games[i].GameID < games[j].GameID
	})
	return games, nil
}

// CompletedKinds returns the kinds already stored for a game
func (s *BoltStore) CompletedKinds(ctx context.Context, gameID string) (map[models.Kind]bool, error) {
	done := make(map[models.Kind]bool)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(models.TableGameKindStatus))
		if b == nil {
			return nil
		}
		prefix := gamePrefix(gameID)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var status models.KindStatus
			if err := json.Unmarshal(v, &status); err != nil {
				return err
			}
			if status.Status == models.StatusCompleted {
				done[status.Kind] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, &PersistenceError{Op: "completed_kinds", Table: models.TableGameKindStatus, GameID: gameID, Err: err}
	}
	return done, nil
}

// RecordKindFailure records that a kind could not be ingested for a game
func (s *BoltStore) RecordKindFailure(ctx context.Context, gameID string, kind models.Kind, runID string, cause error) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return putKindStatus(tx, models.KindStatus{
			GameID:       gameID,
			Kind:         kind,
			Status:       models.StatusFailed,
			ErrorMessage: errorText(cause),
			RunID:        runID,
			UpdatedAt:    time.Now().UTC(),
		})
	})
	if err != nil {
		return &PersistenceError{Op: "record_kind_failure", Table: models.TableGameKindStatus, GameID: gameID, Err: err}
	}
	return nil
}

// MarkGameIngested writes the completeness marker for a game
func (s *BoltStore) MarkGameIngested(ctx context.Context, marker models.IngestedGame) error {
	if marker.CompletedAt.IsZero() {
		marker.CompletedAt = time.Now().UTC()
	}
	err := s.putJSON(models.TableIngestedGames, marker.GameID, marker)
	if err != nil {
		return &PersistenceError{Op: "mark_game_ingested", Table: models.TableIngestedGames, GameID: marker.GameID, Err: err}
	}
	return nil
}

// StartRun inserts the ledger entry for a new run
func (s *BoltStore) StartRun(ctx context.Context, run *models.IngestionRun) error {
	if err := s.putJSON(models.TableIngestionRuns, run.RunID, run); err != nil {
		return &PersistenceError{Op: "start_run", Table: models.TableIngestionRuns, Err: err}
	}
	return nil
}

// FinishRun stores the final status and counters of a run
func (s *BoltStore) FinishRun(ctx context.Context, run *models.IngestionRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	if err := s.putJSON(models.TableIngestionRuns, run.RunID, run); err != nil {
		return &PersistenceError{Op: "finish_run", Table: models.TableIngestionRuns, Err: err}
	}
	return nil
}

// RecentRuns returns the latest runs for a season, newest first
func (s *BoltStore) RecentRuns(ctx context.Context, season string, limit int) ([]*models.IngestionRun, error) {
	var runs []*models.IngestionRun
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(models.TableIngestionRuns))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var run models.IngestionRun
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			if run.Season == season {
				runs = append(runs, &run)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// ResetTable drops and recreates a table's bucket
func (s *BoltStore) ResetTable(ctx context.Context, table string) error {
	def, err := lookupTable(table)
	if err != nil {
		return &PersistenceError{Op: "reset_table", Table: table, Err: err}
	}
	kind := models.Kind(table)

	var cleared int
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := dropBucket(tx, def); err != nil {
			return err
		}
		if _, err := createBucket(tx, def); err != nil {
			return err
		}
		if !kind.Valid() {
			return nil
		}

		status, _ := models.LookupTable(models.TableGameKindStatus)
		b, err := createBucket(tx, status)
		if err != nil {
			return err
		}
		var stale [][]byte
		err = b.ForEach(func(k, v []byte) error {
			var st models.KindStatus
			if err := json.Unmarshal(v, &st); err != nil {
				return err
			}
			if st.Kind == kind {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		marker, _ := models.LookupTable(models.TableIngestedGames)
		if mb := tx.Bucket([]byte(marker.Name)); mb != nil {
			cleared = mb.Stats().KeyN
		}
		if err := dropBucket(tx, marker); err != nil {
			return err
		}
		_, err = createBucket(tx, marker)
		return err
	})
	if err != nil {
		return &PersistenceError{Op: "reset_table", Table: table, Err: err}
	}

	log.Warn().
		Str("table", table).
		Int("markers_cleared", cleared).
		Msg("Table dropped and recreated")
	return nil
}

func dropBucket(tx *bolt.Tx, t models.Table) error {
	if tx.Bucket([]byte(t.Name)) == nil {
		return nil
	}
	if err := tx.DeleteBucket([]byte(t.Name)); err != nil {
		return fmt.Errorf("dropping %s bucket: %w", t.Name, err)
	}
	return nil
}

func (s *BoltStore) putJSON(table, key string, v any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("table %s does not exist", table)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s entry: %w", table, err)
		}
		return b.Put([]byte(key), data)
	})
}

func putKindStatus(tx *bolt.Tx, status models.KindStatus) error {
	b := tx.Bucket([]byte(models.TableGameKindStatus))
	if b == nil {
		return fmt.Errorf("table %s does not exist", models.TableGameKindStatus)
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshaling kind status: %w", err)
	}
	return b.Put([]byte(status.GameID+keySep+string(status.Kind)), data)
}

func gamePrefix(gameID string) []byte {
	return []byte(gameID + keySep)
}

func deletePrefix(b *bolt.Bucket, prefix []byte) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// encodeRow builds the bucket key from the primary key columns and the JSON
// object of every column. Nullable values are stored as JSON null.
func encodeRow(t models.Table, values []any) ([]byte, []byte, error) {
	columns := t.ColumnNames()
	if len(values) != len(columns) {
		return nil, nil, fmt.Errorf("%d values for %d columns of %s", len(values), len(columns), t.Name)
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		v, err := plainValue(values[i])
		if err != nil {
			return nil, nil, fmt.Errorf("column %s: %w", col, err)
		}
		row[col] = v
	}

	parts := make([]string, len(t.PrimaryKey))
	for i, col := range t.PrimaryKey {
		v := row[col]
		if v == nil {
			return nil, nil, fmt.Errorf("primary key column %s is null", col)
		}
		parts[i] = keyPart(v)
	}

	data, err := json.Marshal(row)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling row: %w", err)
	}
	// Single-column keys get the separator too so prefix scans by game stay exact
	key := strings.Join(parts, keySep)
	if len(parts) == 1 {
		key += keySep
	}
	return []byte(key), data, nil
}

func plainValue(v any) (any, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		return valuer.Value()
	}
	return v, nil
}

func keyPart(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
