package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nba_stats/ingestion/internal/metrics"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultMaxAttempts = 3
	userAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxErrorBody       = 512
)

// Cache stores raw payloads between runs
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures a Client
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	MaxAttempts     int
	BaseDelay       time.Duration
	RequestInterval time.Duration

	// Cache is optional. Per-game payloads use GameTTL, schedules use ScheduleTTL.
	Cache       Cache
	GameTTL     time.Duration
	ScheduleTTL time.Duration
}

// Client is the stats.nba.com API client
type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	cache       Cache
	gameTTL     time.Duration
	scheduleTTL time.Duration

	// sleep waits out the backoff between attempts
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new stats API client
func NewClient(opts Options) *Client {
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}

	limit := rate.Inf
	if opts.RequestInterval > 0 {
		limit = rate.Every(opts.RequestInterval)
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		limiter:     rate.NewLimiter(limit, 1),
		maxAttempts: maxAttempts,
		baseDelay:   opts.BaseDelay,
		cache:       opts.Cache,
		gameTTL:     opts.GameTTL,
		scheduleTTL: opts.ScheduleTTL,
		sleep:       sleepContext,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// MaxAttempts returns the number of attempts made before giving up
func (c *Client) MaxAttempts() int {
	return c.maxAttempts
}

// Backoff returns the wait after the given failed attempt (1-based).
// The delay grows linearly with the attempt number.
func (c *Client) Backoff(attempt int) time.Duration {
	return time.Duration(attempt) * c.baseDelay
}

// Fetch performs a GET against endpoint with bounded retries and returns the raw body.
// Transient failures are retried after Backoff(attempt); anything else fails at once.
func (c *Client) Fetch(ctx context.Context, ep Endpoint, params url.Values) ([]byte, error) {
	body, _, err := c.fetch(ctx, ep, params)
	return body, err
}

func (c *Client) fetch(ctx context.Context, ep Endpoint, params url.Values) ([]byte, int, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, attempt - 1, &FetchError{Endpoint: ep.Name, Params: params, Attempts: attempt - 1, Err: err}
		}

		start := time.Now()
		body, status, err := c.do(ctx, ep, params)
		duration := time.Since(start)

		if err == nil {
			metrics.RecordAPICall(ep.Name, "success", duration.Seconds())
			log.Info().
				Str("endpoint", ep.Name).
				Str("params", params.Encode()).
				Int("attempt", attempt).
				Int("status", status).
				Int("size", len(body)).
				Dur("duration", duration).
				Str("outcome", "success").
				Msg("API request succeeded")
			return body, attempt, nil
		}

		if !IsTransient(err) {
			metrics.RecordAPICall(ep.Name, "error", duration.Seconds())
			log.Error().
				Err(err).
				Str("endpoint", ep.Name).
				Str("params", params.Encode()).
				Int("attempt", attempt).
				Int("status", status).
				Str("outcome", "fatal").
				Msg("API request failed, not retrying")
			return nil, attempt, &FetchError{Endpoint: ep.Name, Params: params, Attempts: attempt, Err: err}
		}

		lastErr = err
		metrics.RecordAPICall(ep.Name, "transient", duration.Seconds())

		if attempt == c.maxAttempts {
			log.Error().
				Err(err).
				Str("endpoint", ep.Name).
				Str("params", params.Encode()).
				Int("attempt", attempt).
				Int("max_attempts", c.maxAttempts).
				Str("outcome", "exhausted").
				Msg("API request failed, retries exhausted")
			break
		}

		delay := c.Backoff(attempt)
		log.Warn().
			Err(err).
			Str("endpoint", ep.Name).
			Str("params", params.Encode()).
			Int("attempt", attempt).
			Int("max_attempts", c.maxAttempts).
			Dur("backoff", delay).
			Str("outcome", "retry").
			Msg("Transient API failure, retrying after backoff")
		metrics.RecordRetry(ep.Name, delay.Seconds())

		if err := c.sleep(ctx, delay); err != nil {
			return nil, attempt, &FetchError{Endpoint: ep.Name, Params: params, Attempts: attempt, Err: err}
		}
	}

	return nil, c.maxAttempts, &FetchError{Endpoint: ep.Name, Params: params, Attempts: c.maxAttempts, Err: lastErr}
}

// do performs a single attempt
func (c *Client) do(ctx context.Context, ep Endpoint, params url.Values) ([]byte, int, error) {
	endpointURL := fmt.Sprintf("%s/%s", c.baseURL, ep.Name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.URL.RawQuery = params.Encode()

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "https://www.nba.com/")
	req.Header.Set("Origin", "https://www.nba.com")
	req.Header.Set("x-nba-stats-origin", "stats")
	req.Header.Set("x-nba-stats-token", "true")

	log.Debug().
		Str("url", endpointURL).
		Str("params", req.URL.RawQuery).
		Msg("Making API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Our own cancellation is final; everything else on the wire is retried
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, &TransientError{Endpoint: ep.Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, resp.StatusCode, ctx.Err()
		}
		return nil, resp.StatusCode, &TransientError{
			Endpoint:   ep.Name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, resp.StatusCode, nil

	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
		return nil, resp.StatusCode, &TransientError{
			Endpoint:   ep.Name,
			StatusCode: resp.StatusCode,
			Err:        &StatusError{StatusCode: resp.StatusCode, Body: truncate(body)},
		}

	default:
		// Other 4xx and unexpected statuses are not retried
		return nil, resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: truncate(body)}
	}
}

// fetchInto fetches and decodes a JSON payload, consulting the cache first.
// A payload that does not decode or lacks its body is a non-transient failure
// and is never cached.
func (c *Client) fetchInto(ctx context.Context, ep Endpoint, params url.Values, target any) error {
	key := cacheKey(ep, params)
	ttl := c.ttl(ep)

	if c.cache != nil && ttl > 0 {
		data, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("endpoint", ep.Name).Msg("Cache read failed, fetching from API")
		} else if ok {
			if err := decodePayload(data, target); err == nil {
				log.Debug().Str("endpoint", ep.Name).Str("params", params.Encode()).Msg("Payload served from cache")
				return nil
			}
			log.Warn().Str("endpoint", ep.Name).Msg("Cached payload is unusable, fetching from API")
		}
	}

	body, attempts, err := c.fetch(ctx, ep, params)
	if err != nil {
		return err
	}

	if err := decodePayload(body, target); err != nil {
		log.Error().
			Err(err).
			Str("endpoint", ep.Name).
			Str("params", params.Encode()).
			Str("outcome", "malformed").
			Msg("API payload is malformed")
		return &FetchError{
			Endpoint: ep.Name,
			Params:   params,
			Attempts: attempts,
			Err:      fmt.Errorf("malformed payload: %w", err),
		}
	}

	if c.cache != nil && ttl > 0 {
		if err := c.cache.Set(ctx, key, body, ttl); err != nil {
			log.Warn().Err(err).Str("endpoint", ep.Name).Msg("Cache write failed")
		}
	}
	return nil
}

// validator is implemented by payloads that can detect a missing body
type validator interface {
	Validate() error
}

// decodePayload unmarshals body into target and validates it when possible.
// A JSON document without the expected body is as unusable as one that does not parse.
func decodePayload(body []byte, target any) error {
	if err := json.Unmarshal(body, target); err != nil {
		return err
	}
	if v, ok := target.(validator); ok {
		return v.Validate()
	}
	return nil
}

func (c *Client) ttl(ep Endpoint) time.Duration {
	switch ep.Cache {
	case CacheGame:
		return c.gameTTL
	case CacheSchedule:
		return c.scheduleTTL
	default:
		return 0
	}
}

func cacheKey(ep Endpoint, params url.Values) string {
	return ep.Name + "?" + params.Encode()
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
