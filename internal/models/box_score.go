package models

import (
	"database/sql"
	"fmt"
)

// PlayerGameStats is one player's box score line for a game
type PlayerGameStats struct {
	GameID   string         `db:"game_id"`
	PlayerID int64          `db:"player_id"`
	TeamID   sql.NullInt64  `db:"team_id"`
	Minutes  sql.NullString `db:"minutes"`

	// Traditional
	Points    sql.NullInt32   `db:"pts"`
	Rebounds  sql.NullInt32   `db:"reb"`
	OffReb    sql.NullInt32   `db:"oreb"`
	DefReb    sql.NullInt32   `db:"dreb"`
	Assists   sql.NullInt32   `db:"ast"`
	Steals    sql.NullInt32   `db:"stl"`
	Blocks    sql.NullInt32   `db:"blk"`
	Turnovers sql.NullInt32   `db:"tov"`
	Fouls     sql.NullInt32   `db:"pf"`
	PlusMinus sql.NullFloat64 `db:"plus_minus"`
	FGM       sql.NullInt32   `db:"fgm"`
	FGA       sql.NullInt32   `db:"fga"`
	FGPct     sql.NullFloat64 `db:"fg_pct"`
	FG3M      sql.NullInt32   `db:"fg3m"`
	FG3A      sql.NullInt32   `db:"fg3a"`
	FG3Pct    sql.NullFloat64 `db:"fg3_pct"`
	FTM       sql.NullInt32   `db:"ftm"`
	FTA       sql.NullInt32   `db:"fta"`
	FTPct     sql.NullFloat64 `db:"ft_pct"`

	// Advanced
	OffRating sql.NullFloat64 `db:"off_rating"`
	DefRating sql.NullFloat64 `db:"def_rating"`
	NetRating sql.NullFloat64 `db:"net_rating"`
	UsagePct  sql.NullFloat64 `db:"usg_pct"`
	Pace      sql.NullFloat64 `db:"pace"`
	PIE       sql.NullFloat64 `db:"pie"`

	// Misc
	PointsOffTurnovers sql.NullInt32 `db:"pts_off_tov"`
	SecondChancePoints sql.NullInt32 `db:"pts_2nd_chance"`
	FastBreakPoints    sql.NullInt32 `db:"pts_fb"`
	PaintPoints        sql.NullInt32 `db:"pts_paint"`
	FoulsDrawn         sql.NullInt32 `db:"fouls_drawn"`
}

// Values implements Record
func (s *PlayerGameStats) Values() []any {
	return []any{
		s.GameID, s.PlayerID, s.TeamID, s.Minutes,
		s.Points, s.Rebounds, s.OffReb, s.DefReb, s.Assists, s.Steals, s.Blocks, s.Turnovers, s.Fouls, s.PlusMinus,
		s.FGM, s.FGA, s.FGPct, s.FG3M, s.FG3A, s.FG3Pct, s.FTM, s.FTA, s.FTPct,
		s.OffRating, s.DefRating, s.NetRating, s.UsagePct, s.Pace, s.PIE,
		s.PointsOffTurnovers, s.SecondChancePoints, s.FastBreakPoints, s.PaintPoints, s.FoulsDrawn,
	}
}

// BoxScoreV3Input is the payload of the boxscore*v3 endpoints.
// Exactly one of the bodies is populated depending on the endpoint.
type BoxScoreV3Input struct {
	Traditional *BoxScoreV3Body `json:"boxScoreTraditional,omitempty"`
	Advanced    *BoxScoreV3Body `json:"boxScoreAdvanced,omitempty"`
	Misc        *BoxScoreV3Body `json:"boxScoreMisc,omitempty"`
}

// Body returns whichever box score body the payload carries
func (b *BoxScoreV3Input) Body() *BoxScoreV3Body {
	if b == nil {
		return nil
	}
	switch {
	case b.Traditional != nil:
		return b.Traditional
	case b.Advanced != nil:
		return b.Advanced
	default:
		return b.Misc
	}
}

// Validate rejects a payload that carries none of the box score bodies
func (b *BoxScoreV3Input) Validate() error {
	if b.Body() == nil {
		return fmt.Errorf("%w: no boxScoreTraditional, boxScoreAdvanced or boxScoreMisc", ErrMissingBody)
	}
	return nil
}

// BoxScoreV3Body holds both teams of a v3 box score
type BoxScoreV3Body struct {
	GameID   string         `json:"gameId"`
	HomeTeam BoxScoreV3Team `json:"homeTeam"`
	AwayTeam BoxScoreV3Team `json:"awayTeam"`
}

// BoxScoreV3Team is one side of a v3 box score
type BoxScoreV3Team struct {
	TeamID      int64              `json:"teamId"`
	TeamTricode string             `json:"teamTricode"`
	TeamCity    string             `json:"teamCity"`
	TeamName    string             `json:"teamName"`
	Players     []BoxScoreV3Player `json:"players"`
}

// BoxScoreV3Player is a player entry with its statistics block
type BoxScoreV3Player struct {
	PersonID   int64                 `json:"personId"`
	FirstName  string                `json:"firstName"`
	FamilyName string                `json:"familyName"`
	Comment    string                `json:"comment"`
	Statistics PlayerStatisticsInput `json:"statistics"`
}

// PlayerStatisticsInput is the union of the traditional, advanced and misc statistics blocks
type PlayerStatisticsInput struct {
	Minutes string `json:"minutes"`

	Points                  *float64 `json:"points,omitempty"`
	ReboundsTotal           *float64 `json:"reboundsTotal,omitempty"`
	ReboundsOffensive       *float64 `json:"reboundsOffensive,omitempty"`
	ReboundsDefensive       *float64 `json:"reboundsDefensive,omitempty"`
	Assists                 *float64 `json:"assists,omitempty"`
	Steals                  *float64 `json:"steals,omitempty"`
	Blocks                  *float64 `json:"blocks,omitempty"`
	Turnovers               *float64 `json:"turnovers,omitempty"`
	FoulsPersonal           *float64 `json:"foulsPersonal,omitempty"`
	PlusMinusPoints         *float64 `json:"plusMinusPoints,omitempty"`
	FieldGoalsMade          *float64 `json:"fieldGoalsMade,omitempty"`
	FieldGoalsAttempted     *float64 `json:"fieldGoalsAttempted,omitempty"`
	FieldGoalsPercentage    *float64 `json:"fieldGoalsPercentage,omitempty"`
	ThreePointersMade       *float64 `json:"threePointersMade,omitempty"`
	ThreePointersAttempted  *float64 `json:"threePointersAttempted,omitempty"`
	ThreePointersPercentage *float64 `json:"threePointersPercentage,omitempty"`
	FreeThrowsMade          *float64 `json:"freeThrowsMade,omitempty"`
	FreeThrowsAttempted     *float64 `json:"freeThrowsAttempted,omitempty"`
	FreeThrowsPercentage    *float64 `json:"freeThrowsPercentage,omitempty"`

	OffensiveRating *float64 `json:"offensiveRating,omitempty"`
	DefensiveRating *float64 `json:"defensiveRating,omitempty"`
	NetRating       *float64 `json:"netRating,omitempty"`
	UsagePercentage *float64 `json:"usagePercentage,omitempty"`
	Pace            *float64 `json:"pace,omitempty"`
	PIE             *float64 `json:"PIE,omitempty"`

	PointsOffTurnovers *float64 `json:"pointsOffTurnovers,omitempty"`
	PointsSecondChance *float64 `json:"pointsSecondChance,omitempty"`
	PointsFastBreak    *float64 `json:"pointsFastBreak,omitempty"`
	PointsPaint        *float64 `json:"pointsPaint,omitempty"`
	FoulsDrawn         *float64 `json:"foulsDrawn,omitempty"`
}

type playerTeamKey struct {
	playerID int64
	teamID   int64
}

// PlayerGameStatsFromBoxScores builds one row per player from the traditional
// box score, filling advanced and misc columns where the player appears in
// those payloads. Either of adv and misc may be nil. Players absent from the
// advanced or misc payload keep null values in those columns.
func PlayerGameStatsFromBoxScores(gameID string, trad, adv, misc *BoxScoreV3Input) []*PlayerGameStats {
	base := trad.Body()
	if base == nil {
		return nil
	}

	advanced := indexPlayers(adv.Body())
	miscStats := indexPlayers(misc.Body())

	var rows []*PlayerGameStats
	seen := make(map[int64]bool)
	for _, team := range []BoxScoreV3Team{base.HomeTeam, base.AwayTeam} {
		for _, p := range team.Players {
			key := playerTeamKey{playerID: p.PersonID, teamID: team.TeamID}
			if p.PersonID == 0 || seen[p.PersonID] {
				continue
			}
			seen[p.PersonID] = true

			st := p.Statistics
			row := &PlayerGameStats{
				GameID:    gameID,
				PlayerID:  p.PersonID,
				TeamID:    nullID(team.TeamID),
				Minutes:   nullString(st.Minutes),
				Points:    nullInt32(st.Points),
				Rebounds:  nullInt32(st.ReboundsTotal),
				OffReb:    nullInt32(st.ReboundsOffensive),
				DefReb:    nullInt32(st.ReboundsDefensive),
				Assists:   nullInt32(st.Assists),
				Steals:    nullInt32(st.Steals),
				Blocks:    nullInt32(st.Blocks),
				Turnovers: nullInt32(st.Turnovers),
				Fouls:     nullInt32(st.FoulsPersonal),
				PlusMinus: nullFloat64(st.PlusMinusPoints),
				FGM:       nullInt32(st.FieldGoalsMade),
				FGA:       nullInt32(st.FieldGoalsAttempted),
				FGPct:     nullFloat64(st.FieldGoalsPercentage),
				FG3M:      nullInt32(st.ThreePointersMade),
				FG3A:      nullInt32(st.ThreePointersAttempted),
				FG3Pct:    nullFloat64(st.ThreePointersPercentage),
				FTM:       nullInt32(st.FreeThrowsMade),
				FTA:       nullInt32(st.FreeThrowsAttempted),
				FTPct:     nullFloat64(st.FreeThrowsPercentage),
			}

			if a, ok := advanced[key]; ok {
				row.OffRating = nullFloat64(a.OffensiveRating)
				row.DefRating = nullFloat64(a.DefensiveRating)
				row.NetRating = nullFloat64(a.NetRating)
				row.UsagePct = nullFloat64(a.UsagePercentage)
				row.Pace = nullFloat64(a.Pace)
				row.PIE = nullFloat64(a.PIE)
			}
			if m, ok := miscStats[key]; ok {
				row.PointsOffTurnovers = nullInt32(m.PointsOffTurnovers)
				row.SecondChancePoints = nullInt32(m.PointsSecondChance)
				row.FastBreakPoints = nullInt32(m.PointsFastBreak)
				row.PaintPoints = nullInt32(m.PointsPaint)
				row.FoulsDrawn = nullInt32(m.FoulsDrawn)
			}

			rows = append(rows, row)
		}
	}
	return rows
}

func indexPlayers(body *BoxScoreV3Body) map[playerTeamKey]PlayerStatisticsInput {
	out := make(map[playerTeamKey]PlayerStatisticsInput)
	if body == nil {
		return out
	}
	for _, team := range []BoxScoreV3Team{body.HomeTeam, body.AwayTeam} {
		for _, p := range team.Players {
			out[playerTeamKey{playerID: p.PersonID, teamID: team.TeamID}] = p.Statistics
		}
	}
	return out
}
