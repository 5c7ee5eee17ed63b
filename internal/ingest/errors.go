package ingest

import (
	"errors"
	"fmt"

	"nba_stats/ingestion/internal/client"
	"nba_stats/ingestion/internal/models"
)

// ScheduleFetchError means the season schedule could not be retrieved.
// It is the only error that aborts a run.
type ScheduleFetchError struct {
	Season     string
	SeasonType string
	Err        error
}

func (e *ScheduleFetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s schedule for season %s: %v", e.SeasonType, e.Season, e.Err)
}

func (e *ScheduleFetchError) Unwrap() error {
	return e.Err
}

// ErrNoRows means a kind that every finished game has came back empty
var ErrNoRows = errors.New("no rows for a finished game")

// PayloadError means a fetched payload cannot be stored as a complete kind
type PayloadError struct {
	GameID string
	Kind   models.Kind
	Err    error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("unusable %s payload for game %s: %v", e.Kind, e.GameID, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// endpointOf names the API endpoint behind err, if any
func endpointOf(err error) string {
	var ferr *client.FetchError
	if errors.As(err, &ferr) {
		return ferr.Endpoint
	}
	return ""
}
