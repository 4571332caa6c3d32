package database

import (
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	path := t.TempDir() + "/test.db"

	for i := 0; i < 2; i++ {
		db, err := Open(path)
		if err != nil {
			t.Fatalf("open %d: Failed to open database: %v", i, err)
		}
		if err := db.Health(); err != nil {
			t.Errorf("open %d: Expected healthy database, got %v", i, err)
		}
		db.Close()
	}
}

func TestSessionOperations(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	athleteID := int64(12345)

	t.Run("CreateAndGetSession", func(t *testing.T) {
		s := &Session{
			ID:               "session-1",
			AthleteID:        &athleteID,
			AthleteName:      "Ada Lovelace",
			AthleteCreatedAt: "2019-04-01T10:00:00Z",
			AccessToken:      "access",
			RefreshToken:     "refresh",
			TokenExpiresAt:   now.Add(6 * time.Hour).Unix(),
			Scope:            "read,activity:read_all",
			ExpiresAt:        now.Add(time.Hour),
		}
		if err := db.CreateSession(s); err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		got, err := db.GetSession("session-1", now)
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if got == nil {
			t.Fatal("Expected session to be found")
		}
		if got.AthleteName != "Ada Lovelace" {
			t.Errorf("Expected athlete name 'Ada Lovelace', got %s", got.AthleteName)
		}
		if got.AthleteID == nil || *got.AthleteID != athleteID {
			t.Errorf("Expected athlete id %d, got %v", athleteID, got.AthleteID)
		}
		if got.AccessToken != "access" {
			t.Errorf("Expected access token 'access', got %s", got.AccessToken)
		}
		if got.Demo {
			t.Error("Expected non-demo session")
		}
	})

	t.Run("GetMissingSession", func(t *testing.T) {
		got, err := db.GetSession("nope", now)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if got != nil {
			t.Error("Expected nil for missing session")
		}
	})

	t.Run("ExpiredSessionIsInvisible", func(t *testing.T) {
		got, err := db.GetSession("session-1", now.Add(2*time.Hour))
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if got != nil {
			t.Error("Expected expired session to be hidden")
		}
	})

	t.Run("TouchExtendsExpiry", func(t *testing.T) {
		if err := db.TouchSession("session-1", now, now.Add(3*time.Hour)); err != nil {
			t.Fatalf("Failed to touch session: %v", err)
		}
		got, err := db.GetSession("session-1", now.Add(2*time.Hour))
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if got == nil {
			t.Fatal("Expected touched session to be valid")
		}
	})

	t.Run("DemoSessionWithoutAthlete", func(t *testing.T) {
		s := &Session{ID: "demo-1", AthleteName: "Demo", Demo: true, ExpiresAt: now.Add(time.Hour)}
		if err := db.CreateSession(s); err != nil {
			t.Fatalf("Failed to create demo session: %v", err)
		}
		got, err := db.GetSession("demo-1", now)
		if err != nil || got == nil {
			t.Fatalf("Expected demo session, got %v, %v", got, err)
		}
		if !got.Demo || got.AthleteID != nil {
			t.Errorf("Expected demo session without athlete, got %+v", got)
		}
	})

	t.Run("CountAndExpire", func(t *testing.T) {
		expired := &Session{ID: "old", AthleteName: "Old", ExpiresAt: now.Add(-time.Minute)}
		if err := db.CreateSession(expired); err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		n, err := db.CountActiveSessions()
		if err != nil {
			t.Fatalf("Failed to count sessions: %v", err)
		}
		if n != 2 {
			t.Errorf("Expected 2 active sessions, got %d", n)
		}

		ids, err := db.DeleteExpiredSessions(now)
		if err != nil {
			t.Fatalf("Failed to delete expired sessions: %v", err)
		}
		if len(ids) != 1 || ids[0] != "old" {
			t.Errorf("Expected [old] to be deleted, got %v", ids)
		}
	})

	t.Run("DeleteSession", func(t *testing.T) {
		if err := db.DeleteSession("demo-1"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if err := db.DeleteSession("demo-1"); err != nil {
			t.Errorf("Expected deleting twice to succeed, got %v", err)
		}
		got, _ := db.GetSession("demo-1", now)
		if got != nil {
			t.Error("Expected deleted session to be gone")
		}
	})
}

func TestOAuthStateOperations(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	if err := db.CreateOAuthState("fresh", now.Add(10*time.Minute)); err != nil {
		t.Fatalf("Failed to create state: %v", err)
	}
	if err := db.CreateOAuthState("stale", now.Add(-time.Minute)); err != nil {
		t.Fatalf("Failed to create state: %v", err)
	}

	ok, err := db.ConsumeOAuthState("fresh", now)
	if err != nil {
		t.Fatalf("Failed to consume state: %v", err)
	}
	if !ok {
		t.Error("Expected fresh state to be valid")
	}

	ok, err = db.ConsumeOAuthState("fresh", now)
	if err != nil {
		t.Fatalf("Failed to consume state: %v", err)
	}
	if ok {
		t.Error("Expected state to be single use")
	}

	ok, _ = db.ConsumeOAuthState("unknown", now)
	if ok {
		t.Error("Expected unknown state to be rejected")
	}

	if err := db.CreateOAuthState("stale2", now.Add(-time.Minute)); err != nil {
		t.Fatalf("Failed to create state: %v", err)
	}
	n, err := db.DeleteExpiredOAuthStates(now)
	if err != nil {
		t.Fatalf("Failed to delete expired states: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 expired states deleted, got %d", n)
	}

	ok, _ = db.ConsumeOAuthState("stale", now)
	if ok {
		t.Error("Expected stale state to be gone")
	}
}
