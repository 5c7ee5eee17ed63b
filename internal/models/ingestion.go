package models

import (
	"time"
)

// Status values stored in game_kind_status and ingestion_runs
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRunning   = "running"
	StatusAborted   = "aborted"
)

// KindStatus records the last ingestion outcome of one kind for one game
type KindStatus struct {
	GameID       string    `db:"game_id" json:"game_id"`
	Kind         Kind      `db:"kind" json:"kind"`
	Status       string    `db:"status" json:"status"`
	RowCount     int       `db:"row_count" json:"row_count"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	RunID        string    `db:"run_id" json:"run_id"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// IngestedGame is the completeness marker written once every kind of a game is stored
type IngestedGame struct {
	GameID      string    `db:"game_id" json:"game_id"`
	SeasonID    string    `db:"season_id" json:"season_id"`
	RunID       string    `db:"run_id" json:"run_id"`
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
}

// IngestionRun is one invocation of the season loop
type IngestionRun struct {
	RunID           string     `db:"run_id" json:"run_id"`
	Season          string     `db:"season" json:"season"`
	Status          string     `db:"status" json:"status"`
	Attempted       int        `db:"attempted" json:"attempted"`
	Succeeded       int        `db:"succeeded" json:"succeeded"`
	PartiallyFailed int        `db:"partially_failed" json:"partially_failed"`
	Failed          int        `db:"failed" json:"failed"`
	ErrorMessage    string     `db:"error_message" json:"error_message,omitempty"`
	StartedAt       time.Time  `db:"started_at" json:"started_at"`
	FinishedAt      *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// KindWrite is the full row set of one kind for one game
type KindWrite struct {
	GameID string
	Kind   Kind
	RunID  string
	Rows   []Record
}
