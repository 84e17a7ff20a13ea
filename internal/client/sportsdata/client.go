// Package sportsdata is the client for the primary multi-sport provider.
// One client instance serves every sport; UseSport switches the routing
// table entry so the orchestrator can iterate sports without re-dialing.
// Every request is gated by the shared rate governor and the circuit
// breaker, and the returned payloads are the provider's raw JSON items --
// normalization happens in the transform package, never here.
package sportsdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"sportsync/internal/client/breaker"
	"sportsync/internal/models"
	"sportsync/internal/ratelimit"
)

const Source = "sportdata"

// ErrProviderUnavailable wraps HTTP-level failures that survived retries and
// breaker rejections. Callers skip the source for the rest of the cycle.
var ErrProviderUnavailable = errors.New("provider unavailable")

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sportdata api status %d: %s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	return ErrProviderUnavailable
}

// envelope is the provider's uniform response wrapper. Errors may arrive as
// an object or an array depending on the sport, hence RawMessage.
type envelope struct {
	Results  int               `json:"results"`
	Errors   json.RawMessage   `json:"errors"`
	Response []json.RawMessage `json:"response"`
}

type Options struct {
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

type Client struct {
	httpClient *http.Client
	apiKey     string
	governor   *ratelimit.Governor
	breaker    *breaker.Breaker
	logger     *zap.Logger

	maxRetries     int
	retryBaseDelay time.Duration

	mu    sync.RWMutex
	sport models.Sport
	route route
}

func NewClient(opts Options, governor *ratelimit.Governor, brk *breaker.Breaker, logger *zap.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retryDelay := opts.RetryBaseDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	c := &Client{
		httpClient:     &http.Client{Timeout: timeout},
		apiKey:         opts.APIKey,
		governor:       governor,
		breaker:        brk,
		logger:         logger,
		maxRetries:     opts.MaxRetries,
		retryBaseDelay: retryDelay,
	}
	c.UseSport(models.SportFootball)
	return c
}

// UseSport switches the client's routing context. Unknown sports keep the
// current route and report false.
func (c *Client) UseSport(sport models.Sport) bool {
	r, ok := routes[sport]
	if !ok {
		return false
	}
	c.mu.Lock()
	c.sport = sport
	c.route = r
	c.mu.Unlock()
	return true
}

func (c *Client) Sport() models.Sport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sport
}

func (c *Client) BreakerState() breaker.State {
	if c == nil || c.breaker == nil {
		return breaker.StateClosed
	}
	return c.breaker.State()
}

// FixtureParams narrows a fixtures query. Zero values are omitted.
type FixtureParams struct {
	Date     string // YYYY-MM-DD
	LeagueID string
	Season   string
	TeamID   string
	Live     bool
}

func (p FixtureParams) values() url.Values {
	q := url.Values{}
	if p.Date != "" {
		q.Set("date", p.Date)
	}
	if p.LeagueID != "" {
		q.Set("league", p.LeagueID)
	}
	if p.Season != "" {
		q.Set("season", p.Season)
	}
	if p.TeamID != "" {
		q.Set("team", p.TeamID)
	}
	if p.Live {
		q.Set("live", "all")
	}
	return q
}

// FetchFixtures returns the raw fixture items for the current sport context.
func (c *Client) FetchFixtures(ctx context.Context, params FixtureParams) ([]json.RawMessage, error) {
	c.mu.RLock()
	r := c.route
	sport := c.sport
	c.mu.RUnlock()
	return c.doRequest(ctx, r.Host, r.FixturesPath, params.values(), string(sport)+":fixtures")
}

func (c *Client) FetchLeagues(ctx context.Context, season string) ([]json.RawMessage, error) {
	c.mu.RLock()
	r := c.route
	sport := c.sport
	c.mu.RUnlock()
	q := url.Values{}
	if season != "" {
		q.Set("season", season)
	}
	return c.doRequest(ctx, r.Host, r.LeaguesPath, q, string(sport)+":leagues")
}

func (c *Client) FetchTeams(ctx context.Context, leagueID, season string) ([]json.RawMessage, error) {
	c.mu.RLock()
	r := c.route
	sport := c.sport
	c.mu.RUnlock()
	q := url.Values{}
	if leagueID != "" {
		q.Set("league", leagueID)
	}
	if season != "" {
		q.Set("season", season)
	}
	return c.doRequest(ctx, r.Host, r.TeamsPath, q, string(sport)+":teams")
}

func (c *Client) doRequest(ctx context.Context, host, path string, query url.Values, tag string) ([]json.RawMessage, error) {
	// Budget slot is claimed before dialing and stays consumed on timeout:
	// the request may have reached the provider. A breaker rejection means
	// it was never dialed, so the slot goes back.
	if err := c.governor.Acquire(tag); err != nil {
		return nil, err
	}
	if err := c.breaker.Allow(); err != nil {
		c.governor.Release(tag)
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, err.Error())
	}

	var lastErr error
	attempts := c.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDelay(c.retryBaseDelay, attempt)):
			}
			// Each wire attempt is a separate request against the quota,
			// and the breaker may have opened on the previous attempt.
			if err := c.governor.Acquire(tag); err != nil {
				return nil, err
			}
			if err := c.breaker.Allow(); err != nil {
				c.governor.Release(tag)
				break
			}
		}
		items, err := c.issue(ctx, host, path, query)
		if err == nil {
			c.breaker.RecordSuccess()
			return items, nil
		}
		lastErr = err
		c.breaker.RecordFailure()
		if c.logger != nil {
			c.logger.Warn("sportdata request failed",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
		if !retryable(err) {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
}

func (c *Client) issue(ctx context.Context, host, path string, query url.Values) ([]json.RawMessage, error) {
	fullURL := host + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-apisports-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env.Response, nil
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	// Network errors and timeouts are retryable.
	return true
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(base)))
	return d + jitter
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
