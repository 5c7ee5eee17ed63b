package models

import (
	"database/sql"
)

// HustleStats is one player's hustle line for a game
type HustleStats struct {
	GameID              string        `db:"game_id"`
	PlayerID            int64         `db:"player_id"`
	TeamID              sql.NullInt64 `db:"team_id"`
	ScreenAssists       sql.NullInt32 `db:"screen_assists"`
	ScreenAssistPoints  sql.NullInt32 `db:"screen_ast_pts"`
	Deflections         sql.NullInt32 `db:"deflections"`
	LooseBallsRecovered sql.NullInt32 `db:"loose_balls_recovered"`
	ChargesDrawn        sql.NullInt32 `db:"charges_drawn"`
	ContestedShots      sql.NullInt32 `db:"contested_shots"`
	ContestedShots2PT   sql.NullInt32 `db:"contested_shots_2pt"`
	ContestedShots3PT   sql.NullInt32 `db:"contested_shots_3pt"`
	BoxOuts             sql.NullInt32 `db:"box_outs"`
}

// Values implements Record
func (h *HustleStats) Values() []any {
	return []any{
		h.GameID, h.PlayerID, h.TeamID,
		h.ScreenAssists, h.ScreenAssistPoints, h.Deflections, h.LooseBallsRecovered,
		h.ChargesDrawn, h.ContestedShots, h.ContestedShots2PT, h.ContestedShots3PT, h.BoxOuts,
	}
}

const hustlePlayerSet = "PlayerStats"

// HustleStatsFromResultSets reads the PlayerStats set of hustlestatsboxscore.
// Games without hustle tracking return an empty PlayerStats set.
func HustleStatsFromResultSets(gameID string, input *ResultSetsInput) ([]*HustleStats, error) {
	if input == nil {
		return nil, nil
	}
	set, err := input.Find(hustlePlayerSet)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var rows []*HustleStats
	for _, r := range set.Rows() {
		playerID, ok := r.Int64("PLAYER_ID")
		if !ok || seen[playerID] {
			continue
		}
		seen[playerID] = true

		rows = append(rows, &HustleStats{
			GameID:              gameID,
			PlayerID:            playerID,
			TeamID:              r.NullInt64("TEAM_ID"),
			ScreenAssists:       r.NullInt32("SCREEN_ASSISTS"),
			ScreenAssistPoints:  r.NullInt32("SCREEN_AST_PTS"),
			Deflections:         r.NullInt32("DEFLECTIONS"),
			LooseBallsRecovered: r.NullInt32("LOOSE_BALLS_RECOVERED"),
			ChargesDrawn:        r.NullInt32("CHARGES_DRAWN"),
			ContestedShots:      r.NullInt32("CONTESTED_SHOTS"),
			ContestedShots2PT:   r.NullInt32("CONTESTED_SHOTS_2PT"),
			ContestedShots3PT:   r.NullInt32("CONTESTED_SHOTS_3PT"),
			BoxOuts:             r.NullInt32("BOX_OUTS"),
		})
	}
	return rows, nil
}
