package models

import "fmt"

// Kind identifies one of the per-game statistical categories
type Kind string

const (
	KindPlayerGameStats Kind = "player_game_stats"
	KindPlayByPlay      Kind = "play_by_play"
	KindHustleStats     Kind = "hustle_stats"
	KindPlayerMatchups  Kind = "player_matchups"
	KindGameRotations   Kind = "game_rotations"
)

// Kinds lists every per-game kind in ingestion order
var Kinds = []Kind{
	KindPlayerGameStats,
	KindPlayByPlay,
	KindHustleStats,
	KindPlayerMatchups,
	KindGameRotations,
}

// Table returns the table that holds rows of this kind
func (k Kind) Table() string {
	return string(k)
}

// RequiresRows reports whether a finished game always has rows of this kind.
// Hustle, matchup and rotation feeds can legitimately be empty.
func (k Kind) RequiresRows() bool {
	return k == KindPlayerGameStats || k == KindPlayByPlay
}

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts a table or kind name into a Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown data kind %q", s)
	}
	return k, nil
}

// Record is a single row destined for a kind table.
// Values must line up with the table's Columns.
type Record interface {
	Values() []any
}
