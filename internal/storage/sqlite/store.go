package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samijaber1/aegis-sentinel/internal/detector"
	"github.com/samijaber1/aegis-sentinel/internal/event"
	"github.com/samijaber1/aegis-sentinel/internal/storage"
)

// Store implements EventStore and DecisionLedger using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store with the given database path
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Serialize writers; sqlite handles one writer at a time anyway
	db.SetMaxOpenConns(1)

	// Run migrations
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// AppendEvent persists one ingested event, keeping the full record as JSON
// alongside the indexed columns.
func (s *Store) AppendEvent(e *event.Event) (int64, error) {
	rawJSON, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	var latency interface{}
	if e.LatencyMs != nil {
		latency = *e.LatencyMs
	}

	query := `
		INSERT INTO events (ts_ms, key, session, endpoint, status, latency_ms, backend, error, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		e.TsMs,
		e.Key,
		nullable(e.Session),
		nullable(e.Endpoint),
		e.Status,
		latency,
		nullable(e.Backend),
		nullable(e.Error),
		string(rawJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to store event: %w", err)
	}

	return result.LastInsertId()
}

// QueryEvents retrieves events in a time range, ordered oldest first.
func (s *Store) QueryEvents(filter storage.EventFilter) ([]event.Event, error) {
	query := `
		SELECT ts_ms, key, session, endpoint, status, latency_ms, backend, error
		FROM events
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.FromTsMs > 0 {
		query += " AND ts_ms >= ?"
		args = append(args, filter.FromTsMs)
	}

	if filter.ToTsMs > 0 {
		query += " AND ts_ms <= ?"
		args = append(args, filter.ToTsMs)
	}

	if filter.Key != "" {
		query += " AND key = ?"
		args = append(args, filter.Key)
	}

	if filter.Session != "" {
		query += " AND session = ?"
		args = append(args, filter.Session)
	}

	query += " ORDER BY ts_ms ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 3000" // Default limit
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var e event.Event
		var session, endpoint, backend, errText sql.NullString
		var latency sql.NullInt64

		err := rows.Scan(
			&e.TsMs,
			&e.Key,
			&session,
			&endpoint,
			&e.Status,
			&latency,
			&backend,
			&errText,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		e.Session = session.String
		e.Endpoint = endpoint.String
		e.Backend = backend.String
		e.Error = errText.String
		if latency.Valid {
			v := latency.Int64
			e.LatencyMs = &v
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

// AppendDecision durably persists one immutable decision record.
func (s *Store) AppendDecision(d *detector.Decision) (int64, error) {
	evidenceJSON, err := json.Marshal(d.Evidence)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal evidence: %w", err)
	}

	query := `
		INSERT INTO decisions (ts_ms, kind, target, ttl_sec, reason, evidence_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		d.TsMs,
		d.Kind,
		d.Target,
		d.TTLSec,
		d.Reason,
		string(evidenceJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to store decision: %w", err)
	}

	return result.LastInsertId()
}

// QueryDecisions retrieves decisions in a time range, ordered newest first.
func (s *Store) QueryDecisions(filter storage.DecisionFilter) ([]detector.Decision, error) {
	query := `
		SELECT ts_ms, kind, target, ttl_sec, reason, evidence_json
		FROM decisions
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.FromTsMs > 0 {
		query += " AND ts_ms >= ?"
		args = append(args, filter.FromTsMs)
	}

	if filter.ToTsMs > 0 {
		query += " AND ts_ms <= ?"
		args = append(args, filter.ToTsMs)
	}

	if filter.Target != "" {
		query += " AND target = ?"
		args = append(args, filter.Target)
	}

	query += " ORDER BY ts_ms DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 200" // Default limit
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []detector.Decision
	for rows.Next() {
		var d detector.Decision
		var evidenceJSON string

		err := rows.Scan(
			&d.TsMs,
			&d.Kind,
			&d.Target,
			&d.TTLSec,
			&d.Reason,
			&evidenceJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(evidenceJSON), &d.Evidence); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
		}

		decisions = append(decisions, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return decisions, nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// nullable maps empty strings to NULL
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
