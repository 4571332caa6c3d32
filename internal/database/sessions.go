package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"strava-activity-mapper/internal/metrics"
)

// Session is a connected browser and the credentials it was granted
type Session struct {
	ID               string
	AthleteID        *int64
	AthleteName      string
	AthleteCreatedAt string
	AccessToken      string
	RefreshToken     string
	TokenExpiresAt   int64
	Scope            string
	Demo             bool
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
}

// CreateSession inserts a new session
func (d *DB) CreateSession(s *Session) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpCreateSession))
	defer timer.ObserveDuration()

	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.LastSeenAt.IsZero() {
		s.LastSeenAt = now
	}

	_, err := d.conn.Exec(`
		INSERT INTO sessions (
			id, athlete_id, athlete_name, athlete_created_at,
			access_token, refresh_token, token_expires_at, scope, demo,
			created_at, last_seen_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.AthleteID, s.AthleteName, s.AthleteCreatedAt,
		s.AccessToken, s.RefreshToken, s.TokenExpiresAt, s.Scope, s.Demo,
		s.CreatedAt.Unix(), s.LastSeenAt.Unix(), s.ExpiresAt.Unix())

	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpCreateSession).Inc()
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves an unexpired session by ID.
// Returns nil if the session does not exist or has expired.
func (d *DB) GetSession(id string, now time.Time) (*Session, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetSession))
	defer timer.ObserveDuration()

	var (
		s                               Session
		createdAt, lastSeenAt, expireAt int64
		athleteCreatedAt                sql.NullString
	)
	err := d.conn.QueryRow(`
		SELECT id, athlete_id, athlete_name, athlete_created_at,
		       access_token, refresh_token, token_expires_at, scope, demo,
		       created_at, last_seen_at, expires_at
		FROM sessions WHERE id = ? AND expires_at > ?
	`, id, now.Unix()).Scan(
		&s.ID, &s.AthleteID, &s.AthleteName, &athleteCreatedAt,
		&s.AccessToken, &s.RefreshToken, &s.TokenExpiresAt, &s.Scope, &s.Demo,
		&createdAt, &lastSeenAt, &expireAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetSession).Inc()
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.AthleteCreatedAt = athleteCreatedAt.String
	s.CreatedAt = time.Unix(createdAt, 0)
	s.LastSeenAt = time.Unix(lastSeenAt, 0)
	s.ExpiresAt = time.Unix(expireAt, 0)
	return &s, nil
}

// TouchSession records activity on a session and extends its expiry
func (d *DB) TouchSession(id string, now, expiresAt time.Time) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpTouchSession))
	defer timer.ObserveDuration()

	_, err := d.conn.Exec(`
		UPDATE sessions SET last_seen_at = ?, expires_at = ? WHERE id = ?
	`, now.Unix(), expiresAt.Unix(), id)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpTouchSession).Inc()
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (d *DB) DeleteSession(id string) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpDeleteSession))
	defer timer.ObserveDuration()

	if _, err := d.conn.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpDeleteSession).Inc()
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every session expired at now and returns
// their IDs
func (d *DB) DeleteExpiredSessions(now time.Time) ([]string, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpDeleteExpiredSessions))
	defer timer.ObserveDuration()

	rows, err := d.conn.Query(`DELETE FROM sessions WHERE expires_at <= ? RETURNING id`, now.Unix())
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpDeleteExpiredSessions).Inc()
		return nil, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpDeleteExpiredSessions).Inc()
		return nil, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return ids, nil
}

// CountActiveSessions returns the number of unexpired sessions
func (d *DB) CountActiveSessions() (int, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpCountSessions))
	defer timer.ObserveDuration()

	var n int
	if err := d.conn.QueryRow(`SELECT COUNT(*) FROM sessions WHERE expires_at > ?`, time.Now().Unix()).Scan(&n); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpCountSessions).Inc()
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
