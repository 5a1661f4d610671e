package storage

import (
	"github.com/samijaber1/aegis-sentinel/internal/detector"
	"github.com/samijaber1/aegis-sentinel/internal/event"
)

// EventStore is the append-only store of all raw ingested events. It is read
// only by the analysis path; the decision path reads in-memory windows.
type EventStore interface {
	// AppendEvent persists one ingested event and returns its id
	AppendEvent(e *event.Event) (int64, error)

	// QueryEvents returns events in the filter's range, oldest first
	QueryEvents(filter EventFilter) ([]event.Event, error)
}

// DecisionLedger is the durable, append-only record of every decision.
type DecisionLedger interface {
	// AppendDecision persists one immutable decision record
	AppendDecision(d *detector.Decision) (int64, error)

	// QueryDecisions returns decisions in the filter's range, newest first
	QueryDecisions(filter DecisionFilter) ([]detector.Decision, error)
}

// EventFilter defines filtering options for event queries.
type EventFilter struct {
	FromTsMs int64
	ToTsMs   int64
	Key      string
	Session  string
	Limit    int
}

// DecisionFilter defines filtering options for decision queries.
type DecisionFilter struct {
	FromTsMs int64
	ToTsMs   int64
	Target   string
	Limit    int
}
