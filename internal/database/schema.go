package database

// Schema contains all SQL statements for creating tables and indexes
const Schema = `
-- Sessions table: one row per browser that connected a Strava account or
-- loaded the demo data. Activity data is never stored here.
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,

    -- Athlete summary from the token exchange
    athlete_id INTEGER,
    athlete_name TEXT NOT NULL,
    athlete_created_at TEXT,

    -- OAuth tokens, empty for demo sessions
    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    token_expires_at INTEGER NOT NULL,
    scope TEXT NOT NULL,
    demo BOOLEAN NOT NULL DEFAULT 0,

    -- Metadata
    created_at INTEGER NOT NULL,
    last_seen_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);

-- OAuth states table: CSRF tokens handed out by /oauth-start
CREATE TABLE IF NOT EXISTS oauth_states (
    state TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_oauth_states_expires_at ON oauth_states(expires_at);
`
