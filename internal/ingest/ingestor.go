package ingest

import (
	"context"
	"fmt"
	"time"

	"nba_stats/ingestion/internal/metrics"
	"nba_stats/ingestion/internal/models"
	"nba_stats/ingestion/internal/repository"

	"github.com/rs/zerolog/log"
)

// Outcome classifies a game after ingestion
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// IngestResult reports what happened to each kind of one game
type IngestResult struct {
	GameID string
	// Succeeded maps each written kind to its row count
	Succeeded map[models.Kind]int
	// Skipped kinds were already stored by an earlier run
	Skipped []models.Kind
	Failed  map[models.Kind]error
	// Marked is set once the completeness marker is written
	Marked    bool
	MarkerErr error
	Duration  time.Duration
}

// Outcome is success when nothing failed and the game was marked complete,
// failed when no kind is stored at all, and partial otherwise
func (r IngestResult) Outcome() Outcome {
	switch {
	case len(r.Failed) == 0 && r.Marked:
		return OutcomeSuccess
	case len(r.Succeeded) == 0 && len(r.Skipped) == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// Ingestor ingests a single game
type Ingestor interface {
	IngestGame(ctx context.Context, ref models.GameRef, runID string) IngestResult
}

// GameIngestor fetches and stores the five per-game kinds, each in isolation
type GameIngestor struct {
	source        Source
	store         repository.Store
	skipCompleted bool
}

// NewGameIngestor creates a GameIngestor. With skipCompleted, kinds already
// recorded as completed for a game are not fetched again.
func NewGameIngestor(source Source, store repository.Store, skipCompleted bool) *GameIngestor {
	return &GameIngestor{source: source, store: store, skipCompleted: skipCompleted}
}

// IngestGame ingests every kind of one game. A failing kind never stops the
// others; the completeness marker is written only when all kinds are stored.
func (g *GameIngestor) IngestGame(ctx context.Context, ref models.GameRef, runID string) IngestResult {
	start := time.Now()
	result := IngestResult{
		GameID:    ref.GameID,
		Succeeded: make(map[models.Kind]int),
		Failed:    make(map[models.Kind]error),
	}

	if err := g.store.UpsertGame(ctx, ref.ToGame()); err != nil {
		log.Warn().Err(err).Str("game_id", ref.GameID).Msg("Failed to upsert game row")
	}
	g.recordDimensions(ctx, ref.GameID, ref.Teams(), nil)

	var done map[models.Kind]bool
	if g.skipCompleted {
		var err error
		done, err = g.store.CompletedKinds(ctx, ref.GameID)
		if err != nil {
			log.Warn().Err(err).Str("game_id", ref.GameID).Msg("Failed to read kind status, ingesting every kind")
			done = nil
		}
	}

	for _, kind := range models.Kinds {
		if done[kind] {
			result.Skipped = append(result.Skipped, kind)
			metrics.RecordKind(string(kind), "skipped", 0)
			log.Debug().Str("game_id", ref.GameID).Str("kind", string(kind)).Msg("Kind already stored, skipping")
			continue
		}

		rows, err := g.ingestKind(ctx, ref, kind, runID)
		if err != nil {
			result.Failed[kind] = err
			metrics.RecordKind(string(kind), "failed", 0)
			metrics.RecordError("ingest", string(kind))

			event := log.Error().
				Err(err).
				Str("game_id", ref.GameID).
				Str("kind", string(kind))
			if ep := endpointOf(err); ep != "" {
				event = event.Str("endpoint", ep)
			}
			event.Msg("Kind ingestion failed")

			if rerr := g.store.RecordKindFailure(ctx, ref.GameID, kind, runID, err); rerr != nil {
				log.Warn().Err(rerr).Str("game_id", ref.GameID).Str("kind", string(kind)).Msg("Failed to record kind failure")
			}
			continue
		}

		result.Succeeded[kind] = rows
		metrics.RecordKind(string(kind), "completed", rows)
	}

	if len(result.Failed) == 0 {
		marker := models.IngestedGame{GameID: ref.GameID, SeasonID: ref.SeasonID, RunID: runID}
		if err := g.store.MarkGameIngested(ctx, marker); err != nil {
			result.MarkerErr = err
			log.Error().Err(err).Str("game_id", ref.GameID).Msg("Failed to write completeness marker")
		} else {
			result.Marked = true
		}
	}

	result.Duration = time.Since(start)
	return result
}

// ingestKind fetches, transforms and writes one kind, returning the row count
func (g *GameIngestor) ingestKind(ctx context.Context, ref models.GameRef, kind models.Kind, runID string) (int, error) {
	rows, err := g.fetchKind(ctx, ref.GameID, kind)
	if err != nil {
		return 0, err
	}

	if len(rows) == 0 {
		if kind.RequiresRows() {
			return 0, &PayloadError{GameID: ref.GameID, Kind: kind, Err: ErrNoRows}
		}
		log.Warn().
			Str("game_id", ref.GameID).
			Str("kind", string(kind)).
			Msg("Empty payload, recording kind with zero rows")
	}

	log.Debug().Str("state", stateWriting).Str("game_id", ref.GameID).Str("kind", string(kind)).Msg("Run state")
	write := models.KindWrite{GameID: ref.GameID, Kind: kind, RunID: runID, Rows: rows}
	if err := g.store.InsertRows(ctx, write); err != nil {
		return 0, err
	}

	log.Info().
		Str("game_id", ref.GameID).
		Str("kind", string(kind)).
		Int("rows", len(rows)).
		Str("outcome", "completed").
		Msg("Kind ingested")
	return len(rows), nil
}

func (g *GameIngestor) fetchKind(ctx context.Context, gameID string, kind models.Kind) ([]models.Record, error) {
	switch kind {
	case models.KindPlayerGameStats:
		trad, err := g.source.FetchBoxScoreTraditional(ctx, gameID)
		if err != nil {
			return nil, err
		}
		adv, err := g.source.FetchBoxScoreAdvanced(ctx, gameID)
		if err != nil {
			return nil, err
		}
		misc, err := g.source.FetchBoxScoreMisc(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if err := validate(gameID, kind, trad, adv, misc); err != nil {
			return nil, err
		}
		teams, players := models.DimensionsFromBoxScore(trad)
		g.recordDimensions(ctx, gameID, teams, players)
		return records(models.PlayerGameStatsFromBoxScores(gameID, trad, adv, misc)), nil

	case models.KindPlayByPlay:
		payload, err := g.source.FetchPlayByPlay(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if err := validate(gameID, kind, payload); err != nil {
			return nil, err
		}
		return records(models.PlayByPlayFromV3(gameID, payload)), nil

	case models.KindHustleStats:
		payload, err := g.source.FetchHustleStats(ctx, gameID)
		if err != nil {
			return nil, err
		}
		rows, err := models.HustleStatsFromResultSets(gameID, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to parse hustle stats: %w", err)
		}
		return records(rows), nil

	case models.KindPlayerMatchups:
		payload, err := g.source.FetchMatchups(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if err := validate(gameID, kind, payload); err != nil {
			return nil, err
		}
		return records(models.PlayerMatchupsFromV3(gameID, payload)), nil

	case models.KindGameRotations:
		payload, err := g.source.FetchRotations(ctx, gameID)
		if err != nil {
			return nil, err
		}
		rows, err := models.GameRotationsFromResultSets(gameID, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rotations: %w", err)
		}
		return records(rows), nil

	default:
		return nil, fmt.Errorf("unknown data kind %q", kind)
	}
}

// recordDimensions upserts the teams and players a payload names.
// Dimension rows are auxiliary, so failures are logged and never fail a kind.
func (g *GameIngestor) recordDimensions(ctx context.Context, gameID string, teams []*models.Team, players []*models.Player) {
	if err := g.store.UpsertTeams(ctx, teams); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("Failed to upsert teams")
	}
	if err := g.store.UpsertPlayers(ctx, players); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("Failed to upsert players")
	}
}

// validate checks each payload of a kind for its top-level body
func validate(gameID string, kind models.Kind, payloads ...interface{ Validate() error }) error {
	for _, p := range payloads {
		if err := p.Validate(); err != nil {
			return &PayloadError{GameID: gameID, Kind: kind, Err: err}
		}
	}
	return nil
}

func records[T models.Record](rows []T) []models.Record {
	out := make([]models.Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
