package client

import (
	"errors"
	"fmt"
	"net/url"
)

// TransientError is a failure worth retrying: a timeout, a rate-limit or
// server error response, or a dropped connection.
type TransientError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient failure calling %s (status %d): %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient failure calling %s: %v", e.Endpoint, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// StatusError is a non-retryable HTTP response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// FetchError is returned once a call has failed for good, either because
// retries ran out or because the failure was not retryable.
type FetchError struct {
	Endpoint string
	Params   url.Values
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s (%s) after %d attempt(s): %v", e.Endpoint, e.Params.Encode(), e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is retryable
func IsTransient(err error) bool {
	var terr *TransientError
	return errors.As(err, &terr)
}
