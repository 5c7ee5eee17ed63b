package models

import (
	"database/sql"
	"strings"
	"time"
)

// Team is a row in the teams dimension table
type Team struct {
	TeamID       int64          `db:"team_id"`
	Abbreviation sql.NullString `db:"abbreviation"`
	Nickname     sql.NullString `db:"nickname"`
	City         sql.NullString `db:"city"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// Values returns the row in teams column order
func (t *Team) Values() []any {
	return []any{t.TeamID, t.Abbreviation, t.Nickname, t.City, t.UpdatedAt}
}

// Merge overlays the fields other knows onto t, keeping t's where other is null
func (t *Team) Merge(other *Team) {
	t.Abbreviation = coalesce(t.Abbreviation, other.Abbreviation)
	t.Nickname = coalesce(t.Nickname, other.Nickname)
	t.City = coalesce(t.City, other.City)
}

// Player is a row in the players dimension table
type Player struct {
	PlayerID  int64          `db:"player_id"`
	FullName  sql.NullString `db:"full_name"`
	FirstName sql.NullString `db:"first_name"`
	LastName  sql.NullString `db:"last_name"`
	TeamID    sql.NullInt64  `db:"team_id"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// Values returns the row in players column order
func (p *Player) Values() []any {
	return []any{p.PlayerID, p.FullName, p.FirstName, p.LastName, p.TeamID, p.UpdatedAt}
}

// Merge overlays the fields other knows onto p. A traded player takes the
// team of the latest box score.
func (p *Player) Merge(other *Player) {
	p.FullName = coalesce(p.FullName, other.FullName)
	p.FirstName = coalesce(p.FirstName, other.FirstName)
	p.LastName = coalesce(p.LastName, other.LastName)
	if other.TeamID.Valid {
		p.TeamID = other.TeamID
	}
}

// Teams returns the two teams named on the schedule row
func (g GameRef) Teams() []*Team {
	var teams []*Team
	if g.HomeTeamID != 0 {
		teams = append(teams, &Team{TeamID: g.HomeTeamID, Abbreviation: nullString(g.HomeTeamAbbr)})
	}
	if g.AwayTeamID != 0 {
		teams = append(teams, &Team{TeamID: g.AwayTeamID, Abbreviation: nullString(g.AwayTeamAbbr)})
	}
	return teams
}

// DimensionsFromBoxScore extracts both teams and every listed player
func DimensionsFromBoxScore(input *BoxScoreV3Input) ([]*Team, []*Player) {
	body := input.Body()
	if body == nil {
		return nil, nil
	}

	var (
		teams   []*Team
		players []*Player
	)
	for _, side := range []BoxScoreV3Team{body.HomeTeam, body.AwayTeam} {
		if side.TeamID == 0 {
			continue
		}
		team := &Team{
			TeamID:       side.TeamID,
			Abbreviation: nullString(side.TeamTricode),
			City:         nullString(side.TeamCity),
		}
		if side.TeamName != "" {
			team.Nickname = nullString(strings.TrimSpace(side.TeamCity + " " + side.TeamName))
		}
		teams = append(teams, team)

		for _, p := range side.Players {
			if p.PersonID == 0 {
				continue
			}
			players = append(players, &Player{
				PlayerID:  p.PersonID,
				FullName:  nullString(strings.TrimSpace(p.FirstName + " " + p.FamilyName)),
				FirstName: nullString(p.FirstName),
				LastName:  nullString(p.FamilyName),
				TeamID:    nullID(side.TeamID),
			})
		}
	}
	return teams, players
}

func coalesce(current, incoming sql.NullString) sql.NullString {
	if incoming.Valid {
		return incoming
	}
	return current
}
