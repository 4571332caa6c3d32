package metrics

import (
	"context"
	"log/slog"
	"time"
)

// SessionCounter reports how many sessions are still live
type SessionCounter interface {
	CountActiveSessions() (int, error)
}

// StartSessionCollector starts a background loop that periodically copies the
// active session count into the sessions gauge. It returns when ctx is done.
func StartSessionCollector(ctx context.Context, db SessionCounter, interval time.Duration) {
	logger := slog.Default()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect once immediately
	collectSessions(db, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Session collector stopping")
			return
		case <-ticker.C:
			collectSessions(db, logger)
		}
	}
}

func collectSessions(db SessionCounter, logger *slog.Logger) {
	n, err := db.CountActiveSessions()
	if err != nil {
		logger.Error("Failed to count active sessions", "error", err)
		return
	}
	SessionsActive.Set(float64(n))
}
