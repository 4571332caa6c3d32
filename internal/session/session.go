// Package session tracks connected browsers. Credentials live in sqlite,
// computed dashboards live in an in-memory cache keyed by session ID and
// expire with the session.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"strava-activity-mapper/internal/database"
)

// CookieName is the cookie carrying the session ID
const CookieName = "activity_mapper_session"

// ErrNotFound is returned when a session is missing or expired
var ErrNotFound = errors.New("session not found")

// Store persists sessions
type Store interface {
	CreateSession(s *database.Session) error
	GetSession(id string, now time.Time) (*database.Session, error)
	TouchSession(id string, now, expiresAt time.Time) error
	DeleteSession(id string) error
	DeleteExpiredSessions(now time.Time) ([]string, error)
}

// Manager creates, resolves and expires sessions
type Manager struct {
	store      Store
	dashboards *DashboardCache
	ttl        time.Duration
	secure     bool
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager creates a session manager. secure marks the cookie Secure.
func NewManager(store Store, dashboards *DashboardCache, ttl time.Duration, secure bool, logger *slog.Logger) *Manager {
	return &Manager{
		store:      store,
		dashboards: dashboards,
		ttl:        ttl,
		secure:     secure,
		logger:     logger,
		now:        time.Now,
	}
}

// Dashboards returns the dashboard cache bound to this manager
func (m *Manager) Dashboards() *DashboardCache {
	return m.dashboards
}

// Create assigns a new ID and expiry to s and stores it
func (m *Manager) Create(s *database.Session) error {
	now := m.now()
	s.ID = uuid.NewString()
	s.CreatedAt = now
	s.LastSeenAt = now
	s.ExpiresAt = now.Add(m.ttl)

	if err := m.store.CreateSession(s); err != nil {
		return err
	}
	m.logger.Info("session_created", "session_id", s.ID, "demo", s.Demo)
	return nil
}

// Get resolves a session ID and slides its expiry forward
func (m *Manager) Get(id string) (*database.Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	now := m.now()
	s, err := m.store.GetSession(id, now)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotFound
	}

	s.LastSeenAt = now
	s.ExpiresAt = now.Add(m.ttl)
	if err := m.store.TouchSession(id, now, s.ExpiresAt); err != nil {
		m.logger.Warn("session_touch_failed", "session_id", id, "error", err)
	}
	m.dashboards.Touch(id)
	return s, nil
}

// FromRequest resolves the session named by the request cookie
func (m *Manager) FromRequest(r *http.Request) (*database.Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNotFound
	}
	return m.Get(c.Value)
}

// Resolve is FromRequest for handlers: a resolved session gets its cookie
// re-issued with the slid expiry
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (*database.Session, error) {
	s, err := m.FromRequest(r)
	if err != nil {
		return nil, err
	}
	m.SetCookie(w, s)
	return s, nil
}

// Delete removes a session and its dashboard
func (m *Manager) Delete(id string) error {
	m.dashboards.Delete(id)
	return m.store.DeleteSession(id)
}

// Sweep deletes the sessions expired at now along with their dashboards and
// returns how many were removed
func (m *Manager) Sweep(now time.Time) (int, error) {
	ids, err := m.store.DeleteExpiredSessions(now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	for _, id := range ids {
		m.dashboards.Delete(id)
	}
	return len(ids), nil
}

// SetCookie writes the session cookie
func (m *Manager) SetCookie(w http.ResponseWriter, s *database.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
