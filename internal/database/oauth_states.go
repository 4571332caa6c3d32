package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"strava-activity-mapper/internal/metrics"
)

// CreateOAuthState stores a CSRF state token until expiresAt
func (d *DB) CreateOAuthState(state string, expiresAt time.Time) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpCreateState))
	defer timer.ObserveDuration()

	_, err := d.conn.Exec(`
		INSERT INTO oauth_states (state, created_at, expires_at) VALUES (?, ?, ?)
	`, state, time.Now().Unix(), expiresAt.Unix())
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpCreateState).Inc()
		return fmt.Errorf("failed to create oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState deletes a state token and reports whether it existed and
// was still valid at now. A state can be consumed once.
func (d *DB) ConsumeOAuthState(state string, now time.Time) (bool, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpConsumeState))
	defer timer.ObserveDuration()

	var expiresAt int64
	err := d.conn.QueryRow(`DELETE FROM oauth_states WHERE state = ? RETURNING expires_at`, state).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpConsumeState).Inc()
		return false, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return expiresAt > now.Unix(), nil
}

// DeleteExpiredOAuthStates removes state tokens that expired at or before now
func (d *DB) DeleteExpiredOAuthStates(now time.Time) (int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpDeleteExpiredStates))
	defer timer.ObserveDuration()

	result, err := d.conn.Exec(`DELETE FROM oauth_states WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpDeleteExpiredStates).Inc()
		return 0, fmt.Errorf("failed to delete expired oauth states: %w", err)
	}
	return result.RowsAffected()
}
