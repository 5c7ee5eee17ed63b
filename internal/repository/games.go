package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nba_stats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// UpsertGame inserts or updates a games row
func (db *Database) UpsertGame(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games (
			game_id, game_date, season_id, season_type, matchup,
			home_team_id, away_team_id, home_pts, away_pts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (game_id) DO UPDATE SET
			game_date = EXCLUDED.game_date,
			season_id = EXCLUDED.season_id,
			season_type = EXCLUDED.season_type,
			matchup = EXCLUDED.matchup,
			home_team_id = EXCLUDED.home_team_id,
			away_team_id = EXCLUDED.away_team_id,
			home_pts = EXCLUDED.home_pts,
			away_pts = EXCLUDED.away_pts,
			updated_at = NOW()
		RETURNING updated_at
	`

	start := time.Now()
	err := db.Pool.QueryRow(
		ctx, query,
		game.GameID, game.GameDate, game.SeasonID, game.SeasonType, game.Matchup,
		game.HomeTeamID, game.AwayTeamID, game.HomePoints, game.AwayPoints,
	).Scan(&game.UpdatedAt)
	observe("upsert", models.TableGames, start, err)

	if err != nil {
		return &PersistenceError{Op: "upsert_game", Table: models.TableGames, GameID: game.GameID, Err: err}
	}

	log.Debug().
		Str("game_id", game.GameID).
		Str("matchup", game.Matchup.String).
		Msg("Game upserted")

	return nil
}

// GetGame retrieves a game by its stats.nba.com game id
func (db *Database) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	query := `
		SELECT game_id, game_date, season_id, season_type, matchup,
		       home_team_id, away_team_id, home_pts, away_pts, updated_at
		FROM games
		WHERE game_id = $1
	`

	var game models.Game
	err := db.Pool.QueryRow(ctx, query, gameID).Scan(
		&game.GameID, &game.GameDate, &game.SeasonID, &game.SeasonType, &game.Matchup,
		&game.HomeTeamID, &game.AwayTeamID, &game.HomePoints, &game.AwayPoints, &game.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: game_id=%s", ErrGameNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return &game, nil
}

// GamesBySeason retrieves the stored games of one season id in schedule order
func (db *Database) GamesBySeason(ctx context.Context, seasonID string) ([]*models.Game, error) {
	query := `
		SELECT game_id, game_date, season_id, season_type, matchup,
		       home_team_id, away_team_id, home_pts, away_pts, updated_at
		FROM games
		WHERE season_id = $1
		ORDER BY game_date, game_id
	`

	rows, err := db.Pool.Query(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get games by season: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		var game models.Game
		err := rows.Scan(
			&game.GameID, &game.GameDate, &game.SeasonID, &game.SeasonType, &game.Matchup,
			&game.HomeTeamID, &game.AwayTeamID, &game.HomePoints, &game.AwayPoints, &game.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, &game)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}

	return games, nil
}
