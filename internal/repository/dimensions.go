package repository

import (
	"context"
	"fmt"
	"time"

	"nba_stats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// UpsertTeams inserts or updates teams rows
func (db *Database) UpsertTeams(ctx context.Context, teams []*models.Team) error {
	if len(teams) == 0 {
		return nil
	}

	query := `
		INSERT INTO teams (team_id, abbreviation, nickname, city)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id) DO UPDATE SET
			abbreviation = COALESCE(EXCLUDED.abbreviation, teams.abbreviation),
			nickname = COALESCE(EXCLUDED.nickname, teams.nickname),
			city = COALESCE(EXCLUDED.city, teams.city),
			updated_at = NOW()
		RETURNING updated_at
	`

	batch := &pgx.Batch{}
	for _, team := range teams {
		team := team
		batch.Queue(query, team.TeamID, team.Abbreviation, team.Nickname, team.City).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&team.UpdatedAt)
			})
	}

	start := time.Now()
	err := db.Pool.SendBatch(ctx, batch).Close()
	observe("upsert", models.TableTeams, start, err)
	if err != nil {
		return &PersistenceError{Op: "upsert_teams", Table: models.TableTeams, Err: fmt.Errorf("failed to upsert teams: %w", err)}
	}

	log.Debug().Int("teams", len(teams)).Msg("Teams upserted")
	return nil
}

// UpsertPlayers inserts or updates players rows
func (db *Database) UpsertPlayers(ctx context.Context, players []*models.Player) error {
	if len(players) == 0 {
		return nil
	}

	query := `
		INSERT INTO players (player_id, full_name, first_name, last_name, team_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id) DO UPDATE SET
			full_name = COALESCE(EXCLUDED.full_name, players.full_name),
			first_name = COALESCE(EXCLUDED.first_name, players.first_name),
			last_name = COALESCE(EXCLUDED.last_name, players.last_name),
			team_id = COALESCE(EXCLUDED.team_id, players.team_id),
			updated_at = NOW()
		RETURNING updated_at
	`

	batch := &pgx.Batch{}
	for _, player := range players {
		player := player
		batch.Queue(query, player.PlayerID, player.FullName, player.FirstName, player.LastName, player.TeamID).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&player.UpdatedAt)
			})
	}

	start := time.Now()
	err := db.Pool.SendBatch(ctx, batch).Close()
	observe("upsert", models.TablePlayers, start, err)
	if err != nil {
		return &PersistenceError{Op: "upsert_players", Table: models.TablePlayers, Err: fmt.Errorf("failed to upsert players: %w", err)}
	}

	log.Debug().Int("players", len(players)).Msg("Players upserted")
	return nil
}
