package strava

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"strava-activity-mapper/internal/metrics"
)

const (
	DefaultBaseURL      = "https://www.strava.com/api/v3"
	DefaultTokenURL     = "https://www.strava.com/oauth/token"
	DefaultAuthorizeURL = "https://www.strava.com/oauth/authorize"

	breakerName        = "strava-api"
	nearLimitPct       = 90.0
	defaultHTTPTimeout = 30 * time.Second
)

var errServerStatus = errors.New("server error")

// Client is a Strava API client
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	baseURL      string
	tokenURL     string
	logger       *slog.Logger
	rateLimiter  *RateLimiter
	breaker      *gobreaker.CircuitBreaker[*apiResponse]
}

// Athlete is the athlete summary returned with a token
type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	CreatedAt string `json:"created_at"`
}

// TokenResponse represents the response from a token exchange
type TokenResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresAt    int64   `json:"expires_at"`
	ExpiresIn    int     `json:"expires_in"`
	Athlete      Athlete `json:"athlete"`
}

// AthleteName returns the display name of the athlete
func (t *TokenResponse) AthleteName() string {
	return strings.TrimSpace(t.Athlete.Firstname + " " + t.Athlete.Lastname)
}

type apiResponse struct {
	status int
	body   []byte
}

// NewClient creates a new Strava API client
func NewClient(clientID, clientSecret string, logger *slog.Logger) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      DefaultBaseURL,
		tokenURL:     DefaultTokenURL,
		logger:       logger,
		rateLimiter:  NewRateLimiter(0, 1),
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[*apiResponse](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state_change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return c
}

// SetBaseURL points the client at another API root (used in tests)
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// SetTokenURL points the token exchange at another endpoint (used in tests)
func (c *Client) SetTokenURL(u string) {
	c.tokenURL = u
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// SetRequestRate paces outgoing requests; perSecond <= 0 disables pacing
func (c *Client) SetRequestRate(perSecond float64, burst int) {
	c.rateLimiter = NewRateLimiter(perSecond, burst)
}

// AuthorizeURL builds the URL the user is redirected to in order to grant
// read access to their activities
func (c *Client) AuthorizeURL(authorizeURL, redirectURI, scope, state string) string {
	params := url.Values{
		"client_id":       {c.clientID},
		"redirect_uri":    {redirectURI},
		"response_type":   {"code"},
		"approval_prompt": {"force"},
		"scope":           {scope},
		"state":           {state},
	}
	return authorizeURL + "?" + params.Encode()
}

// ExchangeToken exchanges an authorization code for tokens and the athlete
// summary
func (c *Client) ExchangeToken(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(ctx, metrics.OpExchangeToken, req)
	if err != nil {
		return nil, err
	}

	if resp.status != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.status, Body: string(resp.body)}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(resp.body, &tokenResp); err != nil {
		return nil, &TransportError{Op: metrics.OpExchangeToken, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return &tokenResp, nil
}

// ListActivitiesPage fetches one page of the athlete's activities, most
// recent first
func (c *Client) ListActivitiesPage(ctx context.Context, accessToken string, page, perPage int) (Page, error) {
	params := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/athlete/activities?"+params.Encode(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.do(ctx, metrics.OpListActivities, req)
	if err != nil {
		return Page{}, err
	}
	if resp.status >= http.StatusInternalServerError {
		return Page{}, &TransportError{Op: metrics.OpListActivities, Err: &HTTPError{StatusCode: resp.status, Body: string(resp.body)}}
	}
	metrics.StravaPagesFetchedTotal.Inc()

	p, err := ParsePage(resp.status, resp.body)
	if err != nil {
		return Page{}, &TransportError{Op: metrics.OpListActivities, Err: fmt.Errorf("page %d: %w", page, err)}
	}
	p.Number = page
	return p, nil
}

// GetRateLimitStatus returns the current rate limit status
func (c *Client) GetRateLimitStatus() RateLimitStatus {
	return c.rateLimiter.Status()
}

// CloseIdleConnections releases pooled connections
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// do sends req through the pacer and the circuit breaker and reads the whole
// body. Only network failures and 5xx statuses count against the breaker;
// any other status is handed back for the caller to classify.
func (c *Client) do(ctx context.Context, op string, req *http.Request) (*apiResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	var result *apiResponse
	_, err := c.breaker.Execute(func() (*apiResponse, error) {
		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)
		if err != nil {
			metrics.StravaAPIRequestsTotal.WithLabelValues(op, "error").Inc()
			c.logger.Error("strava_api_request_failed", "operation", op, "error", err, "duration_ms", duration.Milliseconds())
			return nil, err
		}
		defer resp.Body.Close()

		status := strconv.Itoa(resp.StatusCode)
		metrics.StravaAPIRequestsTotal.WithLabelValues(op, status).Inc()
		metrics.StravaAPIRequestDuration.WithLabelValues(op, status).Observe(duration.Seconds())
		c.logger.Info("strava_api_request", "operation", op, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

		if c.rateLimiter.Observe(resp.Header) && c.rateLimiter.IsNearLimit(nearLimitPct) {
			s := c.rateLimiter.Status()
			c.logger.Warn("rate_limit_near",
				"usage_15min_pct", s.Usage15MinPct,
				"usage_daily_pct", s.UsageDailyPct,
			)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		result = &apiResponse{status: resp.StatusCode, body: body}
		if resp.StatusCode >= http.StatusInternalServerError {
			return result, errServerStatus
		}
		return result, nil
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, metrics.ResultSuccess).Inc()
		return result, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, metrics.ResultRejected).Inc()
		return nil, &TransportError{Op: op, Err: err}
	case errors.Is(err, errServerStatus):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, metrics.ResultFailure).Inc()
		return result, nil
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, metrics.ResultFailure).Inc()
		return nil, &TransportError{Op: op, Err: err}
	}
}
