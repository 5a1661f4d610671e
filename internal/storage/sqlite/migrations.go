package sqlite

// Schema defines the SQLite database schema
const Schema = `
-- Raw ingested events, independent of the in-memory windows
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_ms INTEGER NOT NULL,
	key TEXT NOT NULL,
	session TEXT,
	endpoint TEXT,
	status INTEGER NOT NULL,
	latency_ms INTEGER,
	backend TEXT,
	error TEXT,
	raw_json TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_ms);
CREATE INDEX IF NOT EXISTS idx_events_key ON events(key);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session);

-- Append-only decision ledger
CREATE TABLE IF NOT EXISTS decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_ms INTEGER NOT NULL,
	kind TEXT NOT NULL,
	target TEXT NOT NULL,
	ttl_sec INTEGER NOT NULL,
	reason TEXT NOT NULL,
	evidence_json TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(ts_ms DESC);
CREATE INDEX IF NOT EXISTS idx_decisions_target ON decisions(target);
`
