package models

import (
	"database/sql"
	"fmt"
)

// PlayerMatchup is the time one offensive player spent guarded by one defender
type PlayerMatchup struct {
	GameID             string          `db:"game_id"`
	OffPlayerID        int64           `db:"off_player_id"`
	DefPlayerID        int64           `db:"def_player_id"`
	TeamID             sql.NullInt64   `db:"team_id"`
	MatchupMinutes     sql.NullFloat64 `db:"matchup_minutes"`
	PartialPossessions sql.NullFloat64 `db:"partial_possessions"`
	PointsAllowed      sql.NullInt32   `db:"points_allowed"`
	Assists            sql.NullInt32   `db:"matchup_ast"`
	Turnovers          sql.NullInt32   `db:"matchup_tov"`
	Blocks             sql.NullInt32   `db:"matchup_blk"`
}

// Values implements Record
func (m *PlayerMatchup) Values() []any {
	return []any{
		m.GameID, m.OffPlayerID, m.DefPlayerID, m.TeamID,
		m.MatchupMinutes, m.PartialPossessions, m.PointsAllowed, m.Assists, m.Turnovers, m.Blocks,
	}
}

// MatchupsV3Input is the boxscorematchupsv3 payload
type MatchupsV3Input struct {
	BoxScoreMatchups *MatchupsV3Body `json:"boxScoreMatchups,omitempty"`
}

// Validate rejects a payload without the boxScoreMatchups block
func (m *MatchupsV3Input) Validate() error {
	if m == nil || m.BoxScoreMatchups == nil {
		return fmt.Errorf("%w: no boxScoreMatchups", ErrMissingBody)
	}
	return nil
}

// MatchupsV3Body holds both teams' offensive players
type MatchupsV3Body struct {
	GameID   string         `json:"gameId"`
	HomeTeam MatchupsV3Team `json:"homeTeam"`
	AwayTeam MatchupsV3Team `json:"awayTeam"`
}

// MatchupsV3Team is one team's offensive players
type MatchupsV3Team struct {
	TeamID  int64              `json:"teamId"`
	Players []MatchupsV3Player `json:"players"`
}

// MatchupsV3Player is an offensive player and the defenders he faced
type MatchupsV3Player struct {
	PersonID int64               `json:"personId"`
	Matchups []MatchupsV3Defender `json:"matchups"`
}

// MatchupsV3Defender is one defender with the matchup statistics
type MatchupsV3Defender struct {
	PersonID   int64                  `json:"personId"`
	Statistics MatchupStatisticsInput `json:"statistics"`
}

// MatchupStatisticsInput is the statistics block of one matchup.
// matchupMinutes arrives as "M:SS" text on most seasons and as a number on some.
type MatchupStatisticsInput struct {
	MatchupMinutes     any      `json:"matchupMinutes"`
	MatchupMinutesSort *float64 `json:"matchupMinutesSort,omitempty"`
	PartialPossessions *float64 `json:"partialPossessions,omitempty"`
	PlayerPoints       *float64 `json:"playerPoints,omitempty"`
	MatchupAssists     *float64 `json:"matchupAssists,omitempty"`
	MatchupTurnovers   *float64 `json:"matchupTurnovers,omitempty"`
	MatchupBlocks      *float64 `json:"matchupBlocks,omitempty"`
}

// Minutes returns the matchup duration in fractional minutes
func (s MatchupStatisticsInput) Minutes() sql.NullFloat64 {
	if s.MatchupMinutesSort != nil {
		return sql.NullFloat64{Float64: *s.MatchupMinutesSort, Valid: true}
	}
	switch v := s.MatchupMinutes.(type) {
	case float64:
		return sql.NullFloat64{Float64: v, Valid: true}
	case string:
		if m, ok := clockMinutes(v); ok {
			return sql.NullFloat64{Float64: m, Valid: true}
		}
	}
	return sql.NullFloat64{}
}

type matchupPair struct {
	off int64
	def int64
}

// PlayerMatchupsFromV3 flattens the nested matchups, dropping entries without
// both player ids and duplicate offense/defense pairs.
func PlayerMatchupsFromV3(gameID string, input *MatchupsV3Input) []*PlayerMatchup {
	if input == nil || input.BoxScoreMatchups == nil {
		return nil
	}
	body := input.BoxScoreMatchups

	seen := make(map[matchupPair]bool)
	var rows []*PlayerMatchup
	for _, team := range []MatchupsV3Team{body.HomeTeam, body.AwayTeam} {
		for _, off := range team.Players {
			if off.PersonID == 0 {
				continue
			}
			for _, def := range off.Matchups {
				pair := matchupPair{off: off.PersonID, def: def.PersonID}
				if def.PersonID == 0 || seen[pair] {
					continue
				}
				seen[pair] = true

				st := def.Statistics
				rows = append(rows, &PlayerMatchup{
					GameID:             gameID,
					OffPlayerID:        off.PersonID,
					DefPlayerID:        def.PersonID,
					TeamID:             nullID(team.TeamID),
					MatchupMinutes:     st.Minutes(),
					PartialPossessions: nullFloat64(st.PartialPossessions),
					PointsAllowed:      nullInt32(st.PlayerPoints),
					Assists:            nullInt32(st.MatchupAssists),
					Turnovers:          nullInt32(st.MatchupTurnovers),
					Blocks:             nullInt32(st.MatchupBlocks),
				})
			}
		}
	}
	return rows
}
