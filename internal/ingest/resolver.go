package ingest

import (
	"context"
	"fmt"

	"nba_stats/ingestion/internal/config"
	"nba_stats/ingestion/internal/models"
	"nba_stats/ingestion/internal/repository"

	"github.com/rs/zerolog/log"
)

// Source is the subset of the stats API the controller needs.
// *client.Client implements it.
type Source interface {
	FetchLeagueGameFinder(ctx context.Context, season, seasonType string) (*models.ResultSetsInput, error)
	FetchBoxScoreTraditional(ctx context.Context, gameID string) (*models.BoxScoreV3Input, error)
	FetchBoxScoreAdvanced(ctx context.Context, gameID string) (*models.BoxScoreV3Input, error)
	FetchBoxScoreMisc(ctx context.Context, gameID string) (*models.BoxScoreV3Input, error)
	FetchPlayByPlay(ctx context.Context, gameID string) (*models.PlayByPlayV3Input, error)
	FetchHustleStats(ctx context.Context, gameID string) (*models.ResultSetsInput, error)
	FetchMatchups(ctx context.Context, gameID string) (*models.MatchupsV3Input, error)
	FetchRotations(ctx context.Context, gameID string) (*models.ResultSetsInput, error)
}

// Resolver works out which games of a season still need ingesting
type Resolver struct {
	source            Source
	store             repository.Store
	seasonTypes       []string
	completenessTable string
}

// NewResolver creates a Resolver that checks completeness against table
func NewResolver(source Source, store repository.Store, seasonTypes []string, table string) *Resolver {
	if len(seasonTypes) == 0 {
		seasonTypes = []string{models.SeasonTypeRegular}
	}
	if table == "" {
		table = models.TableIngestedGames
	}
	return &Resolver{
		source:            source,
		store:             store,
		seasonTypes:       seasonTypes,
		completenessTable: table,
	}
}

// Schedule returns every completed game of the season in (date, game id) order
func (r *Resolver) Schedule(ctx context.Context, season string) ([]models.GameRef, error) {
	var schedule []models.GameRef
	seen := make(map[string]bool)

	for _, seasonType := range r.seasonTypes {
		payload, err := r.source.FetchLeagueGameFinder(ctx, season, seasonType)
		if err != nil {
			return nil, &ScheduleFetchError{Season: season, SeasonType: seasonType, Err: err}
		}

		refs, err := models.GameRefsFromLeagueGameFinder(payload, seasonType)
		if err != nil {
			return nil, &ScheduleFetchError{Season: season, SeasonType: seasonType, Err: fmt.Errorf("failed to parse schedule: %w", err)}
		}

		for _, ref := range refs {
			if seen[ref.GameID] {
				continue
			}
			seen[ref.GameID] = true
			schedule = append(schedule, ref)
		}

		log.Debug().
			Str("season", season).
			Str("season_type", seasonType).
			Int("games", len(refs)).
			Msg("Schedule fetched")
	}

	models.SortGameRefs(schedule)
	return schedule, nil
}

// MissingGames returns the scheduled games absent from the completeness
// table, in schedule order. An invalid season or an empty schedule yields
// an empty result rather than an error.
func (r *Resolver) MissingGames(ctx context.Context, season string) ([]models.GameRef, error) {
	if !config.ValidSeason(season) {
		log.Warn().Str("season", season).Msg("Season is not of the form YYYY-YY, nothing to ingest")
		return []models.GameRef{}, nil
	}

	schedule, err := r.Schedule(ctx, season)
	if err != nil {
		return nil, err
	}
	if len(schedule) == 0 {
		log.Info().Str("season", season).Msg("Schedule is empty, nothing to ingest")
		return []models.GameRef{}, nil
	}

	existing, err := r.store.ExistingGameIDs(ctx, r.completenessTable)
	if err != nil {
		return nil, err
	}

	missing := make([]models.GameRef, 0, len(schedule))
	for _, ref := range schedule {
		if _, ok := existing[ref.GameID]; !ok {
			missing = append(missing, ref)
		}
	}

	log.Info().
		Str("season", season).
		Str("completeness_table", r.completenessTable).
		Int("scheduled", len(schedule)).
		Int("present", len(schedule)-len(missing)).
		Int("missing", len(missing)).
		Msg("Resolved missing games")

	return missing, nil
}
