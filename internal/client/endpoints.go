package client

import (
	"context"
	"net/url"

	"nba_stats/ingestion/internal/models"
)

// CacheClass selects the cache TTL used for an endpoint
type CacheClass int

const (
	CacheNone CacheClass = iota
	// CacheGame payloads describe a finished game and never change
	CacheGame
	// CacheSchedule payloads grow as the season progresses
	CacheSchedule
)

// Endpoint describes one stats API resource
type Endpoint struct {
	Name  string
	Cache CacheClass
}

var (
	EndpointLeagueGameFinder    = Endpoint{Name: "leaguegamefinder", Cache: CacheSchedule}
	EndpointBoxScoreTraditional = Endpoint{Name: "boxscoretraditionalv3", Cache: CacheGame}
	EndpointBoxScoreAdvanced    = Endpoint{Name: "boxscoreadvancedv3", Cache: CacheGame}
	EndpointBoxScoreMisc        = Endpoint{Name: "boxscoremiscv3", Cache: CacheGame}
	EndpointPlayByPlay          = Endpoint{Name: "playbyplayv3", Cache: CacheGame}
	EndpointHustleStats         = Endpoint{Name: "hustlestatsboxscore", Cache: CacheGame}
	EndpointMatchups            = Endpoint{Name: "boxscorematchupsv3", Cache: CacheGame}
	EndpointRotations           = Endpoint{Name: "gamerotation", Cache: CacheGame}
)

const leagueID = "00"

// FetchLeagueGameFinder fetches the team game log for one season and season type
func (c *Client) FetchLeagueGameFinder(ctx context.Context, season, seasonType string) (*models.ResultSetsInput, error) {
	params := url.Values{}
	params.Set("LeagueID", leagueID)
	params.Set("PlayerOrTeam", "T")
	params.Set("Season", season)
	params.Set("SeasonType", seasonType)

	var out models.ResultSetsInput
	if err := c.fetchInto(ctx, EndpointLeagueGameFinder, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchBoxScoreTraditional fetches the traditional player box score
func (c *Client) FetchBoxScoreTraditional(ctx context.Context, gameID string) (*models.BoxScoreV3Input, error) {
	return c.fetchBoxScore(ctx, EndpointBoxScoreTraditional, gameID)
}

// FetchBoxScoreAdvanced fetches the advanced player box score
func (c *Client) FetchBoxScoreAdvanced(ctx context.Context, gameID string) (*models.BoxScoreV3Input, error) {
	return c.fetchBoxScore(ctx, EndpointBoxScoreAdvanced, gameID)
}

// FetchBoxScoreMisc fetches the misc player box score
func (c *Client) FetchBoxScoreMisc(ctx context.Context, gameID string) (*models.BoxScoreV3Input, error) {
	return c.fetchBoxScore(ctx, EndpointBoxScoreMisc, gameID)
}

func (c *Client) fetchBoxScore(ctx context.Context, ep Endpoint, gameID string) (*models.BoxScoreV3Input, error) {
	var out models.BoxScoreV3Input
	if err := c.fetchInto(ctx, ep, rangeParams(gameID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchPlayByPlay fetches the full action log of a game
func (c *Client) FetchPlayByPlay(ctx context.Context, gameID string) (*models.PlayByPlayV3Input, error) {
	params := url.Values{}
	params.Set("GameID", gameID)
	params.Set("StartPeriod", "0")
	params.Set("EndPeriod", "0")

	var out models.PlayByPlayV3Input
	if err := c.fetchInto(ctx, EndpointPlayByPlay, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchHustleStats fetches the hustle box score
func (c *Client) FetchHustleStats(ctx context.Context, gameID string) (*models.ResultSetsInput, error) {
	params := url.Values{}
	params.Set("GameID", gameID)

	var out models.ResultSetsInput
	if err := c.fetchInto(ctx, EndpointHustleStats, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchMatchups fetches the player-on-player defensive matchups
func (c *Client) FetchMatchups(ctx context.Context, gameID string) (*models.MatchupsV3Input, error) {
	var out models.MatchupsV3Input
	if err := c.fetchInto(ctx, EndpointMatchups, rangeParams(gameID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchRotations fetches substitution stints for both teams
func (c *Client) FetchRotations(ctx context.Context, gameID string) (*models.ResultSetsInput, error) {
	params := url.Values{}
	params.Set("GameID", gameID)
	params.Set("LeagueID", leagueID)

	var out models.ResultSetsInput
	if err := c.fetchInto(ctx, EndpointRotations, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// rangeParams are the whole-game parameters the v3 box score endpoints expect
func rangeParams(gameID string) url.Values {
	params := url.Values{}
	params.Set("GameID", gameID)
	params.Set("LeagueID", leagueID)
	params.Set("StartPeriod", "0")
	params.Set("EndPeriod", "0")
	params.Set("StartRange", "0")
	params.Set("EndRange", "28800")
	params.Set("RangeType", "0")
	return params
}
