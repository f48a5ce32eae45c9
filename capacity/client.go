/*
Package capacity is the HTTP client for the external capacity-planning
service.

PURPOSE:
  For roll-off service on vendor-managed equipment, the capacity planner
  knows which days a truck can actually be sent. The scheduler asks it for
  the available dates of one service baseline at a time.

WIRE FORMAT:
  Request:
    GET {endpoint}?baselineId=<id>
    Authorization: Bearer <token>     (when a token is configured)

  Response (2xx):
    {"data": {"availableDates": ["01/15/2025", "01/16/2025"]}}

  Anything else (non-2xx, other shape, unparseable date, empty list) is a
  failure. The caller decides the fallback.

LIMITS:
  - Every call is bounded by Timeout (on top of the caller's context)
  - Calls share a token-bucket limiter so bulk batches stay under the
    planner's rate limit

SEE ALSO:
  - sla/capacity.go: Deduplicated batch fan-out over this client
*/
package capacity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/warp/entitlement-engine/calendar"
)

var (
	// ErrUnavailable covers transport failures, timeouts and non-2xx replies.
	ErrUnavailable = errors.New("capacity planner unavailable")

	// ErrMalformedResponse is returned when a 2xx body has the wrong shape.
	ErrMalformedResponse = errors.New("capacity planner returned malformed response")

	// ErrNoDates is returned for a well-formed reply with no dates.
	ErrNoDates = errors.New("capacity planner returned no dates")
)

// StatusError carries the HTTP status of a rejected call.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("capacity planner returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("capacity planner returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUnavailable }

// Config is externally supplied; see config.CapacityConfig.
type Config struct {
	Endpoint      string
	Token         string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// Client calls the capacity planner. Safe for concurrent use.
type Client struct {
	endpoint *url.URL
	token    string
	timeout  time.Duration
	http     *http.Client
	limiter  *rate.Limiter
}

// New validates cfg and returns a client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid capacity endpoint %q", cfg.Endpoint)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("capacity timeout must be positive, got %s", cfg.Timeout)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Client{
		endpoint: u,
		token:    cfg.Token,
		timeout:  cfg.Timeout,
		http:     httpClient,
		limiter:  limiter,
	}, nil
}

type availabilityResponse struct {
	Data *struct {
		AvailableDates []string `json:"availableDates"`
	} `json:"data"`
}

// AvailableDates returns the planner's available dates for baselineID,
// ascending.
func (c *Client) AvailableDates(ctx context.Context, baselineID string) ([]calendar.Date, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %w", ErrUnavailable, err)
	}

	u := *c.endpoint
	q := u.Query()
	q.Set("baselineId", baselineID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("%w: missing data object", ErrMalformedResponse)
	}
	if len(payload.Data.AvailableDates) == 0 {
		return nil, ErrNoDates
	}

	dates := make([]calendar.Date, 0, len(payload.Data.AvailableDates))
	for _, s := range payload.Data.AvailableDates {
		d, err := calendar.ParseDate(calendar.LayoutUS, strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%w: date %q: %w", ErrMalformedResponse, s, err)
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}
