package models

// Auxiliary table names
const (
	TableGames          = "games"
	TableTeams          = "teams"
	TablePlayers        = "players"
	TableGameKindStatus = "game_kind_status"
	TableIngestedGames  = "ingested_games"
	TableIngestionRuns  = "ingestion_runs"
)

// Column is a table column with its Postgres type
type Column struct {
	Name string
	Type string
}

// Table describes one table of the ingestion schema
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
}

// ColumnNames returns the column names in declaration order
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasGameID reports whether the table is keyed by game
func (t Table) HasGameID() bool {
	for _, c := range t.Columns {
		if c.Name == "game_id" {
			return true
		}
	}
	return false
}

const (
	typeText      = "TEXT"
	typeInt       = "INTEGER"
	typeBigInt    = "BIGINT"
	typeFloat     = "DOUBLE PRECISION"
	typeTimestamp = "TIMESTAMPTZ"
	typeDate      = "DATE"
)

var schema = []Table{
	{
		Name: TableGames,
		Columns: []Column{
			{"game_id", typeText + " NOT NULL"},
			{"game_date", typeDate},
			{"season_id", typeText},
			{"season_type", typeText},
			{"matchup", typeText},
			{"home_team_id", typeBigInt},
			{"away_team_id", typeBigInt},
			{"home_pts", typeInt},
			{"away_pts", typeInt},
			{"updated_at", typeTimestamp + " NOT NULL DEFAULT NOW()"},
		},
		PrimaryKey: []string{"game_id"},
	},
	{
		Name: TableTeams,
		Columns: []Column{
			{"team_id", typeBigInt + " NOT NULL"},
			{"abbreviation", typeText},
			{"nickname", typeText},
			{"city", typeText},
			{"updated_at", typeTimestamp + " NOT NULL DEFAULT NOW()"},
		},
		PrimaryKey: []string{"team_id"},
	},
	{
		Name: TablePlayers,
		Columns: []Column{
			{"player_id", typeBigInt + " NOT NULL"},
			{"full_name", typeText},
			{"first_name", typeText},
			{"last_name", typeText},
			{"team_id", typeBigInt},
			{"updated_at", typeTimestamp + " NOT NULL DEFAULT NOW()"},
		},
		PrimaryKey: []string{"player_id"},
	},
	{
		Name: string(KindPlayerGameStats),
		Columns: []Column{
			{"game_id", typeText + " NOT NULL"},
			{"player_id", typeBigInt + " NOT NULL"},
			{"team_id", typeBigInt},
			{"minutes", typeText},
			{"pts", typeInt},
			{"reb", typeInt},
			{"oreb", typeInt},
			{"dreb", typeInt},
			{"ast", typeInt},
			{"stl", typeInt},
			{"blk", typeInt},
			{"tov", typeInt},
			{"pf", typeInt},
			{"plus_minus", typeFloat},
			{"fgm", typeInt},
			{"fga", typeInt},
			{"fg_pct", typeFloat},
			{"fg3m", typeInt},
			{"fg3a", typeInt},
			{"fg3_pct", typeFloat},
			{"ftm", typeInt},
			{"fta", typeInt},
			{"ft_pct", typeFloat},
			{"off_rating", typeFloat},
			{"def_rating", typeFloat},
			{"net_rating", typeFloat},
			{"usg_pct", typeFloat},
			{"pace", typeFloat},
			{"pie", typeFloat},
			{"pts_off_tov", typeInt},
			{"pts_2nd_chance", typeInt},
			{"pts_fb", typeInt},
			{"pts_paint", typeInt},
			{"fouls_drawn", typeInt},
		},
		PrimaryKey: []string{"game_id", "player_id"},
	},
	{
		Name: string(KindPlayByPlay),
		Columns: []Column{
			{"game_id", typeText + " NOT NULL"},
			{"event_num", typeBigInt + " NOT NULL"},
			{"period", typeInt},
			{"clock", typeText},
			{"team_id", typeBigInt},
			{"player_id", typeBigInt},
			{"action_type", typeText},
			{"sub_type", typeText},
			{"description", typeText},
			{"shot_result", typeText},
			{"loc_x", typeFloat},
			{"loc_y", typeFloat},
			{"score_home", typeInt},
			{"score_away", typeInt},
			{"margin", typeInt},
		},
		PrimaryKey: []string{"game_id", "event_num"},
	},
	{
		Name: string(KindHustleStats),
		Columns: []Column{
			{"game_id", typeText + " NOT NULL"},
			{"player_id", typeBigInt + " NOT NULL"},
			{"team_id", typeBigInt},
			{"screen_assists", typeInt},
			{"screen_ast_pts", typeInt},
			{"deflections", typeInt},
			{"loose_balls_recovered", typeInt},
			{"charges_drawn", typeInt},
			{"contested_shots", typeInt},
			{"contested_shots_2pt", typeInt},
			{"contested_shots_3pt", typeInt},
			{"box_outs", typeInt},
		},
		PrimaryKey: []string{"game_id", "player_id"},
	},
	{
		Name: string(KindPlayerMatchups),
		Columns: []Column{
			{"game_id", typeText + " NOT NULL"},
			{"off_player_id", typeBigInt + " NOT NULL"},
			{"def_player_id", typeBigInt + " NOT NULL"},
			{"team_id", typeBigInt},
			{"matchup_minutes", typeFloat},
			{"partial_possessions", typeFloat},
			{"points_allowed", typeInt},
			{"matchup_ast", typeInt},
			{"matchup_tov", typeInt},
			{"matchup_blk", typeInt},
		},
		PrimaryKey: []string{"game_id", "off_player_id", "def_player_id"},
	},
	{
		Name: string(KindGameRotations),
		Columns: []Column{
			{"game_id", typeText + " NOT NULL"},
			{"player_id", typeBigInt + " NOT NULL"},
			{"in_time_real", typeFloat + " NOT NULL"},
			{"team_id", typeBigInt},
			{"out_time_real", typeFloat},
			{"player_pts", typeInt},
			{"pt_diff", typeFloat},
			{"usg_pct", typeFloat},
		},
		PrimaryKey: []string{"game_id", "player_id", "in_time_real"},
	},
	{
		Name: TableGameKindStatus,
		Columns: []Column{
			{"game_id", typeText + " NOT NULL"},
			{"kind", typeText + " NOT NULL"},
			{"status", typeText + " NOT NULL"},
			{"row_count", typeInt},
			{"error_message", typeText},
			{"run_id", typeText},
			{"updated_at", typeTimestamp + " NOT NULL DEFAULT NOW()"},
		},
		PrimaryKey: []string{"game_id", "kind"},
	},
	{
		Name: TableIngestedGames,
		Columns: []Column{
			{"game_id", typeText + " NOT NULL"},
			{"season_id", typeText},
			{"run_id", typeText},
			{"completed_at", typeTimestamp + " NOT NULL DEFAULT NOW()"},
		},
		PrimaryKey: []string{"game_id"},
	},
	{
		Name: TableIngestionRuns,
		Columns: []Column{
			{"run_id", typeText + " NOT NULL"},
			{"season", typeText + " NOT NULL"},
			{"status", typeText + " NOT NULL"},
			{"attempted", typeInt},
			{"succeeded", typeInt},
			{"partially_failed", typeInt},
			{"failed", typeInt},
			{"error_message", typeText},
			{"started_at", typeTimestamp + " NOT NULL"},
			{"finished_at", typeTimestamp},
		},
		PrimaryKey: []string{"run_id"},
	},
}

// Schema returns every table in creation order
func Schema() []Table {
	out := make([]Table, len(schema))
	copy(out, schema)
	return out
}

// LookupTable finds a table definition by name
func LookupTable(name string) (Table, bool) {
	for _, t := range schema {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
