package apifootball_http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/CMCFame/parseteamsapifb/internal/core/fixtures"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

const (
	DefaultBaseURL = "https://v3.football.api-sports.io"
	apiKeyHeader   = "x-apisports-key"
)

// Client talks to the API-Football v3 REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a client limited to ratePerSec requests per second
// (burst 1). A non-positive rate disables the limiter.
func NewClient(baseURL, apiKey string, ratePerSec float64, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", fixtures.ErrUpstream, err)
	}
	telemetry.Metrics.RateLimiterWait.Record(time.Since(waitStart))

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http do: %v", fixtures.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", fixtures.ErrUpstream, err)
	}

	elapsed := time.Since(start)
	telemetry.Metrics.UpstreamLatency.Record(elapsed)
	telemetry.Debugf("apifootball_http: GET %s?%s -> %d (%s)", path, query.Encode(), resp.StatusCode, elapsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s: status %d", fixtures.ErrUpstream, path, resp.StatusCode)
	}
	return body, nil
}

// FixturesByDate lists every fixture on date (YYYY-MM-DD) as seen in timezone.
func (c *Client) FixturesByDate(ctx context.Context, date, timezone string) ([]fixtures.Fixture, error) {
	q := url.Values{}
	q.Set("date", date)
	if timezone != "" {
		q.Set("timezone", timezone)
	}
	body, err := c.get(ctx, "/fixtures", q)
	if err != nil {
		return nil, err
	}
	list, err := parseFixtures(body)
	if err != nil {
		return nil, fmt.Errorf("fixtures %s: %w", date, err)
	}
	return list, nil
}

// HeadToHead lists past and scheduled fixtures between two teams.
func (c *Client) HeadToHead(ctx context.Context, homeID, awayID int) ([]fixtures.Fixture, error) {
	q := url.Values{}
	q.Set("h2h", fmt.Sprintf("%d-%d", homeID, awayID))
	body, err := c.get(ctx, "/fixtures/headtohead", q)
	if err != nil {
		return nil, err
	}
	list, err := parseFixtures(body)
	if err != nil {
		return nil, fmt.Errorf("headtohead %d-%d: %w", homeID, awayID, err)
	}
	return list, nil
}

// AccountStatus is the subscription and daily quota reported by /status.
type AccountStatus struct {
	Plan         string
	Active       bool
	RequestsUsed int
	RequestsCap  int
}

// Status reports the account plan and today's request usage.
func (c *Client) Status(ctx context.Context) (AccountStatus, error) {
	body, err := c.get(ctx, "/status", nil)
	if err != nil {
		return AccountStatus{}, err
	}
	return parseStatus(body)
}
