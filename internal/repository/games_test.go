//go:build integration

package repository

import (
	"database/sql"
	"testing"
	"time"

	"nba_stats/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabase_UpsertGame(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	ref := models.GameRef{
		GameID:     "0022300001",
		GameDate:   time.Date(2023, 10, 24, 0, 0, 0, 0, time.UTC),
		SeasonID:   "22023",
		SeasonType: models.SeasonTypeRegular,
		Matchup:    "DEN vs. LAL",
		HomeTeamID: 1610612743,
		AwayTeamID: 1610612747,
	}

	game := ref.ToGame()
	require.NoError(t, db.UpsertGame(ctx, game), "Should insert game")

	retrieved, err := db.GetGame(ctx, "0022300001")
	require.NoError(t, err, "Should retrieve game")
	assert.Equal(t, "DEN vs. LAL", retrieved.Matchup.String)
	assert.Equal(t, int64(1610612743), retrieved.HomeTeamID.Int64)
	assert.False(t, retrieved.HomePoints.Valid)

	// Scores arrive on a later run
	game.HomePoints = sql.NullInt32{Int32: 119, Valid: true}
	game.AwayPoints = sql.NullInt32{Int32: 107, Valid: true}
	require.NoError(t, db.UpsertGame(ctx, game), "Should update game")

	updated, err := db.GetGame(ctx, "0022300001")
	require.NoError(t, err)
	assert.Equal(t, int32(119), updated.HomePoints.Int32)
	assert.Equal(t, int32(107), updated.AwayPoints.Int32)
	assert.False(t, updated.UpdatedAt.Before(retrieved.UpdatedAt))
}

func TestDatabase_GamesBySeason(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	for i, id := range []string{"0022300002", "0022300001", "0022300003"} {
		game := models.GameRef{
			GameID:   id,
			GameDate: time.Date(2023, 10, 24+i%2, 0, 0, 0, 0, time.UTC),
			SeasonID: "22023",
		}.ToGame()
		require.NoError(t, db.UpsertGame(ctx, game))
	}

	games, err := db.GamesBySeason(ctx, "22023")
	require.NoError(t, err)
	require.Len(t, games, 3)
	assert.Equal(t, "0022300002", games[0].GameID)
	assert.Equal(t, "0022300003", games[1].GameID)
	assert.Equal(t, "0022300001", games[2].GameID)
}

func TestDatabase_GetGame_NotFound(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	_, err := db.GetGame(ctx, "0029999999")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestDatabase_UpsertDimensions(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	teams := []*models.Team{{
		TeamID:       1610612743,
		Abbreviation: sql.NullString{String: "DEN", Valid: true},
		Nickname:     sql.NullString{String: "Denver Nuggets", Valid: true},
	}}
	require.NoError(t, db.UpsertTeams(ctx, teams))
	assert.False(t, teams[0].UpdatedAt.IsZero())
	require.NoError(t, db.UpsertTeams(ctx, []*models.Team{{TeamID: 1610612743, City: sql.NullString{String: "Denver", Valid: true}}}))

	var nickname, city string
	err := db.Pool.QueryRow(ctx, `SELECT nickname, city FROM teams WHERE team_id = $1`, 1610612743).Scan(&nickname, &city)
	require.NoError(t, err)
	assert.Equal(t, "Denver Nuggets", nickname)
	assert.Equal(t, "Denver", city)

	players := []*models.Player{{PlayerID: 203999, FullName: sql.NullString{String: "Nikola Jokic", Valid: true}, TeamID: sql.NullInt64{Int64: 1610612743, Valid: true}}}
	require.NoError(t, db.UpsertPlayers(ctx, players))
	require.NoError(t, db.UpsertPlayers(ctx, []*models.Player{{PlayerID: 203999}}))

	var fullName string
	var teamID int64
	err = db.Pool.QueryRow(ctx, `SELECT full_name, team_id FROM players WHERE player_id = $1`, 203999).Scan(&fullName, &teamID)
	require.NoError(t, err)
	assert.Equal(t, "Nikola Jokic", fullName)
	assert.Equal(t, int64(1610612743), teamID)
}
