// Package oauth drives the Strava authorization code flow: it issues
// CSRF-protected authorize URLs and turns callbacks into tokens.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"strava-activity-mapper/internal/strava"
)

// StateTTL is how long an issued state stays valid
const StateTTL = 10 * time.Minute

var (
	// ErrInvalidState is returned for unknown, reused or expired states
	ErrInvalidState = errors.New("invalid or expired state")
	// ErrAccessDenied is returned when the athlete declined authorization
	ErrAccessDenied = errors.New("access denied")
	// ErrInsufficientScope is returned when activity read access was not granted
	ErrInsufficientScope = errors.New("insufficient scope")
)

// StateStore persists one-time CSRF states
type StateStore interface {
	CreateOAuthState(state string, expiresAt time.Time) error
	ConsumeOAuthState(state string, now time.Time) (bool, error)
}

// TokenExchanger builds authorize URLs and exchanges codes
type TokenExchanger interface {
	AuthorizeURL(authorizeURL, redirectURI, scope, state string) string
	ExchangeToken(ctx context.Context, code string) (*strava.TokenResponse, error)
}

// Callback holds the query parameters Strava redirects back with
type Callback struct {
	Code  string
	State string
	Scope string
	Error string
}

// Manager handles OAuth 2.0 flow with Strava
type Manager struct {
	states       StateStore
	client       TokenExchanger
	authorizeURL string
	redirectURI  string
	scope        string
	logger       *slog.Logger
	now          func() time.Time
}

// NewManager creates a new OAuth manager requesting scope and redirecting
// back to redirectURI
func NewManager(states StateStore, client TokenExchanger, redirectURI, scope string, logger *slog.Logger) *Manager {
	return &Manager{
		states:       states,
		client:       client,
		authorizeURL: strava.DefaultAuthorizeURL,
		redirectURI:  redirectURI,
		scope:        scope,
		logger:       logger,
		now:          time.Now,
	}
}

// SetAuthorizeURL points the flow at another authorize endpoint
func (m *Manager) SetAuthorizeURL(u string) {
	m.authorizeURL = u
}

// GenerateAuthURL generates a Strava authorization URL with CSRF protection
func (m *Manager) GenerateAuthURL() (string, string, error) {
	state, err := generateRandomState()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}

	if err := m.states.CreateOAuthState(state, m.now().Add(StateTTL)); err != nil {
		return "", "", err
	}

	return m.client.AuthorizeURL(m.authorizeURL, m.redirectURI, m.scope, state), state, nil
}

// HandleCallback validates the callback and exchanges its code for tokens.
// The state is consumed even when the callback is rejected afterwards.
func (m *Manager) HandleCallback(ctx context.Context, cb Callback) (*strava.TokenResponse, error) {
	valid, err := m.states.ConsumeOAuthState(cb.State, m.now())
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, ErrInvalidState
	}

	if cb.Error != "" {
		m.logger.Info("oauth_denied", "error", cb.Error)
		return nil, ErrAccessDenied
	}
	if !HasActivityScope(cb.Scope) {
		m.logger.Info("oauth_insufficient_scope", "scope", cb.Scope)
		return nil, ErrInsufficientScope
	}
	if cb.Code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	tokenResp, err := m.client.ExchangeToken(ctx, cb.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	m.logger.Info("oauth_connected", "athlete_id", tokenResp.Athlete.ID, "scope", cb.Scope)
	return tokenResp, nil
}

// HasActivityScope reports whether a granted scope list allows reading
// activities
func HasActivityScope(scope string) bool {
	for _, s := range strings.Split(scope, ",") {
		switch strings.TrimSpace(s) {
		case "activity:read", "activity:read_all":
			return true
		}
	}
	return false
}

// generateRandomState generates a cryptographically secure random state
func generateRandomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
