package models

import (
	"database/sql"
)

// GameRotation is one on-court stint for a player
type GameRotation struct {
	GameID      string          `db:"game_id"`
	PlayerID    int64           `db:"player_id"`
	InTimeReal  float64         `db:"in_time_real"`
	TeamID      sql.NullInt64   `db:"team_id"`
	OutTimeReal sql.NullFloat64 `db:"out_time_real"`
	PlayerPts   sql.NullInt32   `db:"player_pts"`
	PtDiff      sql.NullFloat64 `db:"pt_diff"`
	UsagePct    sql.NullFloat64 `db:"usg_pct"`
}

// Values implements Record
func (r *GameRotation) Values() []any {
	return []any{
		r.GameID, r.PlayerID, r.InTimeReal, r.TeamID,
		r.OutTimeReal, r.PlayerPts, r.PtDiff, r.UsagePct,
	}
}

var rotationSets = []string{"AwayTeam", "HomeTeam"}

type stintKey struct {
	playerID int64
	in       float64
}

// GameRotationsFromResultSets reads the stints of both teams from gamerotation
func GameRotationsFromResultSets(gameID string, input *ResultSetsInput) ([]*GameRotation, error) {
	if input == nil {
		return nil, nil
	}

	seen := make(map[stintKey]bool)
	var rows []*GameRotation
	for _, name := range rotationSets {
		set, err := input.Find(name)
		if err != nil {
			return nil, err
		}
		for _, r := range set.Rows() {
			playerID, ok := r.Int64("PERSON_ID")
			if !ok {
				continue
			}
			in, ok := r.Float("IN_TIME_REAL")
			if !ok {
				continue
			}
			key := stintKey{playerID: playerID, in: in}
			if seen[key] {
				continue
			}
			seen[key] = true

			rows = append(rows, &GameRotation{
				GameID:      gameID,
				PlayerID:    playerID,
				InTimeReal:  in,
				TeamID:      r.NullInt64("TEAM_ID"),
				OutTimeReal: r.NullFloat64("OUT_TIME_REAL"),
				PlayerPts:   r.NullInt32("PLAYER_PTS"),
				PtDiff:      r.NullFloat64("PT_DIFF"),
				UsagePct:    r.NullFloat64("USG_PCT"),
			})
		}
	}
	return rows, nil
}
