package models

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Season types accepted by leaguegamefinder
const (
	SeasonTypeRegular  = "Regular Season"
	SeasonTypePlayIn   = "PlayIn"
	SeasonTypePlayoffs = "Playoffs"
)

// seasonIDPrefix is the leading digit stats.nba.com puts on SEASON_ID
var seasonIDPrefix = map[string]string{
	SeasonTypeRegular:  "2",
	SeasonTypePlayoffs: "4",
	SeasonTypePlayIn:   "5",
}

// SeasonID returns the SEASON_ID of a season and season type,
// e.g. "22023" for the 2023-24 regular season.
func SeasonID(season, seasonType string) (string, error) {
	prefix, ok := seasonIDPrefix[seasonType]
	if !ok {
		return "", fmt.Errorf("unknown season type %q", seasonType)
	}
	year, _, found := strings.Cut(season, "-")
	if !found || len(year) != 4 {
		return "", fmt.Errorf("season %q does not look like 2023-24", season)
	}
	return prefix + year, nil
}

// GameRef identifies one completed game on a season schedule
type GameRef struct {
	GameID       string
	GameDate     time.Time
	SeasonID     string
	SeasonType   string
	Matchup      string
	HomeTeamID   int64
	AwayTeamID   int64
	HomeTeamAbbr string
	AwayTeamAbbr string
	HomePoints   sql.NullInt32
	AwayPoints   sql.NullInt32
}

// Game is a row in the games table
type Game struct {
	GameID     string         `db:"game_id"`
	GameDate   sql.NullTime   `db:"game_date"`
	SeasonID   sql.NullString `db:"season_id"`
	SeasonType sql.NullString `db:"season_type"`
	Matchup    sql.NullString `db:"matchup"`
	HomeTeamID sql.NullInt64  `db:"home_team_id"`
	AwayTeamID sql.NullInt64  `db:"away_team_id"`
	HomePoints sql.NullInt32  `db:"home_pts"`
	AwayPoints sql.NullInt32  `db:"away_pts"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

// Values returns the row in games column order
func (g *Game) Values() []any {
	return []any{
		g.GameID, g.GameDate, g.SeasonID, g.SeasonType, g.Matchup,
		g.HomeTeamID, g.AwayTeamID, g.HomePoints, g.AwayPoints, g.UpdatedAt,
	}
}

// ToGame converts a schedule reference into a games row
func (g GameRef) ToGame() *Game {
	game := &Game{
		GameID:     g.GameID,
		SeasonID:   nullString(g.SeasonID),
		SeasonType: nullString(g.SeasonType),
		Matchup:    nullString(g.Matchup),
		HomeTeamID: nullID(g.HomeTeamID),
		AwayTeamID: nullID(g.AwayTeamID),
		HomePoints: g.HomePoints,
		AwayPoints: g.AwayPoints,
	}
	if !g.GameDate.IsZero() {
		game.GameDate = sql.NullTime{Time: g.GameDate, Valid: true}
	}
	return game
}

const leagueGameFinderSet = "LeagueGameFinderResults"

// GameRefsFromLeagueGameFinder collapses the per-team schedule rows into one
// GameRef per completed game, ordered by date then game id.
func GameRefsFromLeagueGameFinder(input *ResultSetsInput, seasonType string) ([]GameRef, error) {
	if input == nil {
		return nil, fmt.Errorf("empty leaguegamefinder payload")
	}
	set, err := input.Find(leagueGameFinderSet)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*GameRef)
	for _, row := range set.Rows() {
		// Unplayed games have no result yet
		if row.String("WL") == "" {
			continue
		}
		gameID := row.String("GAME_ID")
		if gameID == "" {
			continue
		}

		ref, ok := byID[gameID]
		if !ok {
			ref = &GameRef{
				GameID:     gameID,
				SeasonID:   row.String("SEASON_ID"),
				SeasonType: seasonType,
			}
			if d, err := time.Parse("2006-01-02", row.String("GAME_DATE")); err == nil {
				ref.GameDate = d
			}
			byID[gameID] = ref
		}

		teamID, _ := row.Int64("TEAM_ID")
		matchup := row.String("MATCHUP")
		if strings.Contains(matchup, "@") {
			ref.AwayTeamID = teamID
			ref.AwayTeamAbbr = row.String("TEAM_ABBREVIATION")
			ref.AwayPoints = row.NullInt32("PTS")
			if ref.Matchup == "" {
				ref.Matchup = matchup
			}
		} else {
			ref.HomeTeamID = teamID
			ref.HomeTeamAbbr = row.String("TEAM_ABBREVIATION")
			ref.HomePoints = row.NullInt32("PTS")
			ref.Matchup = matchup
		}
	}

	refs := make([]GameRef, 0, len(byID))
	for _, ref := range byID {
		refs = append(refs, *ref)
	}
	SortGameRefs(refs)
	return refs, nil
}

// SortGameRefs orders games chronologically, breaking ties on game id
func SortGameRefs(refs []GameRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		if !refs[i].GameDate.Equal(refs[j].GameDate) {
			return refs[i].GameDate.Before(refs[j].GameDate)
		}
		return refs[i].GameID < refs[j].GameID
	})
}
