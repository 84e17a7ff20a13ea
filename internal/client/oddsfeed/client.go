// Package oddsfeed is the client for the secondary provider, which prices
// fixtures the primary provider only schedules. Unlike sportsdata it has one
// host for every sport and a typed response shape stable across sports.
package oddsfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"sportsync/internal/client/breaker"
	"sportsync/internal/models"
	"sportsync/internal/ratelimit"
)

const Source = "oddsfeed"

var ErrProviderUnavailable = errors.New("odds provider unavailable")

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("oddsfeed api status %d: %s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	return ErrProviderUnavailable
}

// sportKeys maps canonical sports onto the odds feed's sport keys. Sports the
// feed does not price are absent.
var sportKeys = map[models.Sport]string{
	models.SportFootball:         "soccer",
	models.SportBasketball:       "basketball",
	models.SportNBA:              "basketball_nba",
	models.SportHockey:           "icehockey",
	models.SportMMA:              "mma_mixed_martial_arts",
	models.SportRugby:            "rugbyunion",
	models.SportAFL:              "aussierules_afl",
	models.SportAmericanFootball: "americanfootball_nfl",
}

type OddsOutcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type OddsMarket struct {
	Key      string        `json:"key"`
	Outcomes []OddsOutcome `json:"outcomes"`
}

type Bookmaker struct {
	Key     string       `json:"key"`
	Markets []OddsMarket `json:"markets"`
}

// OddsEvent is one priced fixture. ID is the feed's own identity, unrelated
// to the primary provider's; correlation happens on the merge match key.
type OddsEvent struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	governor   *ratelimit.Governor
	breaker    *breaker.Breaker
	logger     *zap.Logger
}

func NewClient(opts Options, governor *ratelimit.Governor, brk *breaker.Breaker, logger *zap.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		governor:   governor,
		breaker:    brk,
		logger:     logger,
	}
}

// Supports reports whether the odds feed prices the given sport at all.
func (c *Client) Supports(sport models.Sport) bool {
	_, ok := sportKeys[sport]
	return ok
}

func (c *Client) BreakerState() breaker.State {
	if c == nil || c.breaker == nil {
		return breaker.StateClosed
	}
	return c.breaker.State()
}

// FetchOdds returns priced upcoming fixtures for one sport.
func (c *Client) FetchOdds(ctx context.Context, sport models.Sport) ([]OddsEvent, error) {
	key, ok := sportKeys[sport]
	if !ok {
		return nil, nil
	}
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("regions", "eu")
	q.Set("markets", "h2h")
	fullURL := fmt.Sprintf("%s/sports/%s/odds?%s", c.baseURL, url.PathEscape(key), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	tag := string(sport) + ":odds"
	if err := c.governor.Acquire(tag); err != nil {
		return nil, err
	}
	if err := c.breaker.Allow(); err != nil {
		// Never dialed; the budget slot goes back.
		c.governor.Release(tag)
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return nil, &APIError{Status: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var items []OddsEvent
	if err := json.Unmarshal(body, &items); err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("failed to decode odds response: %w", err)
	}
	c.breaker.RecordSuccess()
	return items, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
