package ingest

import (
	"context"
	"errors"
	"sync"

	"nba_stats/ingestion/internal/client"
	"nba_stats/ingestion/internal/models"
)

type scheduledGame struct {
	id   string
	date string
	home int64
	away int64
}

// fakeSource serves canned payloads and counts every call
type fakeSource struct {
	mu          sync.Mutex
	schedule    map[string][]scheduledGame
	scheduleErr error
	failures    map[string]map[models.Kind]error
	emptyHustle bool
	bodyless    map[models.Kind]bool
	calls       map[string]int
	gameCalls   map[string]int
}

func newFakeSource(games ...scheduledGame) *fakeSource {
	return &fakeSource{
		schedule:  map[string][]scheduledGame{models.SeasonTypeRegular: games},
		failures:  map[string]map[models.Kind]error{},
		calls:     map[string]int{},
		gameCalls: map[string]int{},
		bodyless:  map[models.Kind]bool{},
	}
}

// dropBody makes payloads of kind decode without their top-level body
func (f *fakeSource) dropBody(kind models.Kind, drop bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodyless[kind] = drop
}

func (f *fakeSource) isBodyless(kind models.Kind) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodyless[kind]
}

func (f *fakeSource) failKind(gameID string, kind models.Kind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[gameID] == nil {
		f.failures[gameID] = map[models.Kind]error{}
	}
	f.failures[gameID][kind] = err
}

func (f *fakeSource) clearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = map[string]map[models.Kind]error{}
}

func (f *fakeSource) callCount(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func (f *fakeSource) gameCallCount(gameID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gameCalls[gameID]
}

func (f *fakeSource) record(endpoint, gameID string, kind models.Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[endpoint]++
	if gameID != "" {
		f.gameCalls[gameID]++
	}
	if err := f.failures[gameID][kind]; err != nil {
		return &client.FetchError{Endpoint: endpoint, Attempts: 3, Err: err}
	}
	return nil
}

func (f *fakeSource) FetchLeagueGameFinder(ctx context.Context, season, seasonType string) (*models.ResultSetsInput, error) {
	f.mu.Lock()
	f.calls["leaguegamefinder"]++
	games := f.schedule[seasonType]
	err := f.scheduleErr
	f.mu.Unlock()

	if err != nil {
		return nil, &client.FetchError{Endpoint: "leaguegamefinder", Attempts: 3, Err: err}
	}

	set := models.ResultSetInput{
		Name:    "LeagueGameFinderResults",
		Headers: []string{"SEASON_ID", "TEAM_ID", "TEAM_ABBREVIATION", "GAME_ID", "GAME_DATE", "MATCHUP", "WL", "PTS"},
	}
	for _, g := range games {
		set.RowSet = append(set.RowSet,
			[]any{"22023", float64(g.home), "HOM", g.id, g.date, "HOM vs. AWY", "W", float64(110)},
			[]any{"22023", float64(g.away), "AWY", g.id, g.date, "AWY @ HOM", "L", float64(100)},
		)
	}
	return &models.ResultSetsInput{Resource: "leaguegamefinder", ResultSets: []models.ResultSetInput{set}}, nil
}

func boxScoreBody(gameID string) *models.BoxScoreV3Body {
	points := 20.0
	return &models.BoxScoreV3Body{
		GameID: gameID,
		HomeTeam: models.BoxScoreV3Team{TeamID: 1, TeamTricode: "HOM", TeamCity: "Home", TeamName: "Hosts", Players: []models.BoxScoreV3Player{
			{PersonID: 10, FirstName: "Ada", FamilyName: "Guard", Statistics: models.PlayerStatisticsInput{Minutes: "30:00", Points: &points}},
			{PersonID: 11, FirstName: "Ben", FamilyName: "Wing", Statistics: models.PlayerStatisticsInput{Minutes: "18:00", Points: &points}},
		}},
		AwayTeam: models.BoxScoreV3Team{TeamID: 2, TeamTricode: "AWY", TeamCity: "Away", TeamName: "Visitors", Players: []models.BoxScoreV3Player{
			{PersonID: 20, FirstName: "Cy", FamilyName: "Center", Statistics: models.PlayerStatisticsInput{Minutes: "34:00", Points: &points}},
		}},
	}
}

func (f *fakeSource) FetchBoxScoreTraditional(ctx context.Context, gameID string) (*models.BoxScoreV3Input, error) {
	if err := f.record("boxscoretraditionalv3", gameID, models.KindPlayerGameStats); err != nil {
		return nil, err
	}
	if f.isBodyless(models.KindPlayerGameStats) {
		return &models.BoxScoreV3Input{}, nil
	}
	return &models.BoxScoreV3Input{Traditional: boxScoreBody(gameID)}, nil
}

func (f *fakeSource) FetchBoxScoreAdvanced(ctx context.Context, gameID string) (*models.BoxScoreV3Input, error) {
	if err := f.record("boxscoreadvancedv3", gameID, ""); err != nil {
		return nil, err
	}
	return &models.BoxScoreV3Input{Advanced: boxScoreBody(gameID)}, nil
}

func (f *fakeSource) FetchBoxScoreMisc(ctx context.Context, gameID string) (*models.BoxScoreV3Input, error) {
	if err := f.record("boxscoremiscv3", gameID, ""); err != nil {
		return nil, err
	}
	return &models.BoxScoreV3Input{Misc: boxScoreBody(gameID)}, nil
}

func (f *fakeSource) FetchPlayByPlay(ctx context.Context, gameID string) (*models.PlayByPlayV3Input, error) {
	if err := f.record("playbyplayv3", gameID, models.KindPlayByPlay); err != nil {
		return nil, err
	}
	if f.isBodyless(models.KindPlayByPlay) {
		return &models.PlayByPlayV3Input{}, nil
	}
	payload := &models.PlayByPlayV3Input{Game: &models.PlayByPlayV3Game{GameID: gameID}}
	payload.Game.Actions = []models.PlayByPlayActionInput{
		{ActionNumber: 1, Period: 1, ActionType: "period", ScoreHome: "0", ScoreAway: "0"},
		{ActionNumber: 2, Period: 1, TeamID: 1, PersonID: 10, ActionType: "Made Shot", ScoreHome: "2", ScoreAway: "0"},
		{ActionNumber: 3, Period: 1, TeamID: 2, PersonID: 20, ActionType: "Made Shot", ScoreHome: "2", ScoreAway: "3"},
	}
	return payload, nil
}

func (f *fakeSource) FetchHustleStats(ctx context.Context, gameID string) (*models.ResultSetsInput, error) {
	if err := f.record("hustlestatsboxscore", gameID, models.KindHustleStats); err != nil {
		return nil, err
	}
	set := models.ResultSetInput{
		Name:    "PlayerStats",
		Headers: []string{"GAME_ID", "TEAM_ID", "PLAYER_ID", "DEFLECTIONS"},
	}
	f.mu.Lock()
	empty := f.emptyHustle
	f.mu.Unlock()
	if !empty {
		set.RowSet = [][]any{
			{gameID, float64(1), float64(10), float64(2)},
			{gameID, float64(2), float64(20), float64(1)},
		}
	}
	return &models.ResultSetsInput{Resource: "hustlestatsboxscore", ResultSets: []models.ResultSetInput{set}}, nil
}

func (f *fakeSource) FetchMatchups(ctx context.Context, gameID string) (*models.MatchupsV3Input, error) {
	if err := f.record("boxscorematchupsv3", gameID, models.KindPlayerMatchups); err != nil {
		return nil, err
	}
	if f.isBodyless(models.KindPlayerMatchups) {
		return &models.MatchupsV3Input{}, nil
	}
	return &models.MatchupsV3Input{BoxScoreMatchups: &models.MatchupsV3Body{
		GameID: gameID,
		HomeTeam: models.MatchupsV3Team{TeamID: 1, Players: []models.MatchupsV3Player{
			{PersonID: 10, Matchups: []models.MatchupsV3Defender{{PersonID: 20}}},
		}},
		AwayTeam: models.MatchupsV3Team{TeamID: 2, Players: []models.MatchupsV3Player{
			{PersonID: 20, Matchups: []models.MatchupsV3Defender{{PersonID: 10}, {PersonID: 11}}},
		}},
	}}, nil
}

func (f *fakeSource) FetchRotations(ctx context.Context, gameID string) (*models.ResultSetsInput, error) {
	if err := f.record("gamerotation", gameID, models.KindGameRotations); err != nil {
		return nil, err
	}
	headers := []string{"GAME_ID", "TEAM_ID", "PERSON_ID", "IN_TIME_REAL", "OUT_TIME_REAL"}
	return &models.ResultSetsInput{Resource: "gamerotation", ResultSets: []models.ResultSetInput{
		{Name: "AwayTeam", Headers: headers, RowSet: [][]any{{gameID, float64(2), float64(20), float64(0), float64(2880)}}},
		{Name: "HomeTeam", Headers: headers, RowSet: [][]any{{gameID, float64(1), float64(10), float64(0), float64(1800)}}},
	}}, nil
}

var errUpstream = errors.New("upstream unavailable")
