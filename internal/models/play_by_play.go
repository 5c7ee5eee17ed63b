package models

import (
	"database/sql"
	"fmt"
)

// PlayByPlayEvent is a single action in a game's event log
type PlayByPlayEvent struct {
	GameID      string          `db:"game_id"`
	EventNum    int64           `db:"event_num"`
	Period      sql.NullInt32   `db:"period"`
	Clock       sql.NullString  `db:"clock"`
	TeamID      sql.NullInt64   `db:"team_id"`
	PlayerID    sql.NullInt64   `db:"player_id"`
	ActionType  sql.NullString  `db:"action_type"`
	SubType     sql.NullString  `db:"sub_type"`
	Description sql.NullString  `db:"description"`
	ShotResult  sql.NullString  `db:"shot_result"`
	LocX        sql.NullFloat64 `db:"loc_x"`
	LocY        sql.NullFloat64 `db:"loc_y"`
	ScoreHome   sql.NullInt32   `db:"score_home"`
	ScoreAway   sql.NullInt32   `db:"score_away"`
	Margin      sql.NullInt32   `db:"margin"`
}

// Values implements Record
func (e *PlayByPlayEvent) Values() []any {
	return []any{
		e.GameID, e.EventNum, e.Period, e.Clock, e.TeamID, e.PlayerID,
		e.ActionType, e.SubType, e.Description, e.ShotResult,
		e.LocX, e.LocY, e.ScoreHome, e.ScoreAway, e.Margin,
	}
}

// PlayByPlayV3Input is the playbyplayv3 payload
type PlayByPlayV3Input struct {
	Game *PlayByPlayV3Game `json:"game,omitempty"`
}

// PlayByPlayV3Game is the game block holding the action log
type PlayByPlayV3Game struct {
	GameID  string                  `json:"gameId"`
	Actions []PlayByPlayActionInput `json:"actions"`
}

// Validate rejects a payload without the game block
func (p *PlayByPlayV3Input) Validate() error {
	if p == nil || p.Game == nil {
		return fmt.Errorf("%w: no game block", ErrMissingBody)
	}
	return nil
}

// PlayByPlayActionInput is one action in the v3 play-by-play feed
type PlayByPlayActionInput struct {
	ActionNumber int64    `json:"actionNumber"`
	Clock        string   `json:"clock"`
	Period       int      `json:"period"`
	TeamID       int64    `json:"teamId"`
	PersonID     int64    `json:"personId"`
	ActionType   string   `json:"actionType"`
	SubType      string   `json:"subType"`
	Description  string   `json:"description"`
	ShotResult   string   `json:"shotResult"`
	XLegacy      *float64 `json:"xLegacy,omitempty"`
	YLegacy      *float64 `json:"yLegacy,omitempty"`
	ScoreHome    string   `json:"scoreHome"`
	ScoreAway    string   `json:"scoreAway"`
}

// PlayByPlayFromV3 converts the feed into rows, keeping the first occurrence
// of each action number.
func PlayByPlayFromV3(gameID string, input *PlayByPlayV3Input) []*PlayByPlayEvent {
	if input == nil || input.Game == nil {
		return nil
	}

	seen := make(map[int64]bool, len(input.Game.Actions))
	events := make([]*PlayByPlayEvent, 0, len(input.Game.Actions))
	for _, a := range input.Game.Actions {
		if seen[a.ActionNumber] {
			continue
		}
		seen[a.ActionNumber] = true

		event := &PlayByPlayEvent{
			GameID:      gameID,
			EventNum:    a.ActionNumber,
			Period:      sql.NullInt32{Int32: int32(a.Period), Valid: a.Period > 0},
			Clock:       nullString(a.Clock),
			TeamID:      nullID(a.TeamID),
			PlayerID:    nullID(a.PersonID),
			ActionType:  nullString(a.ActionType),
			SubType:     nullString(a.SubType),
			Description: nullString(a.Description),
			ShotResult:  nullString(a.ShotResult),
			LocX:        nullFloat64(a.XLegacy),
			LocY:        nullFloat64(a.YLegacy),
			ScoreHome:   nullScore(a.ScoreHome),
			ScoreAway:   nullScore(a.ScoreAway),
		}
		if event.ScoreHome.Valid && event.ScoreAway.Valid {
			event.Margin = sql.NullInt32{Int32: event.ScoreHome.Int32 - event.ScoreAway.Int32, Valid: true}
		}
		events = append(events, event)
	}
	return events
}
