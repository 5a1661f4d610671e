package sentinel

import (
	"context"
	"fmt"
	"time"

	"github.com/samijaber1/aegis-sentinel/internal/analyze"
	"github.com/samijaber1/aegis-sentinel/internal/detector"
	"github.com/samijaber1/aegis-sentinel/internal/event"
	"github.com/samijaber1/aegis-sentinel/internal/policy"
	"github.com/samijaber1/aegis-sentinel/internal/storage"
	"github.com/samijaber1/aegis-sentinel/internal/window"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping() error
}

// Service ties ingestion, detection, the ledger and analysis together. It is
// the single entry point the API layer talks to.
type Service struct {
	policy   policy.Policy
	events   storage.EventStore
	ledger   storage.DecisionLedger
	engine   *detector.Engine
	analyzer *analyze.Analyzer
	pinger   Pinger
}

// Options configures optional service collaborators.
type Options struct {
	// Narrative is the external model client for analysis; nil disables it
	Narrative analyze.NarrativeClient

	// SummaryTimeout bounds one narrative call
	SummaryTimeout time.Duration

	// Pinger backs the readiness probe; nil means always ready
	Pinger Pinger
}

// New creates a service around the given policy and stores. events and
// ledger are usually the same SQLite store.
func New(pol policy.Policy, events storage.EventStore, ledger storage.DecisionLedger, opts Options) *Service {
	return &Service{
		policy:   pol,
		events:   events,
		ledger:   ledger,
		engine:   detector.NewEngine(pol, window.NewStore(pol.Window), ledger),
		analyzer: analyze.NewAnalyzer(events, opts.Narrative, pol, opts.SummaryTimeout),
		pinger:   opts.Pinger,
	}
}

// Policy returns the active threshold policy
func (s *Service) Policy() policy.Policy {
	return s.policy
}

// Ingest persists one event and feeds it to the detector. A missing
// timestamp is stamped with the receive time. The returned decision is nil
// unless this event tripped a rule.
func (s *Service) Ingest(e *event.Event, now time.Time) (int64, *detector.Decision, error) {
	if e.TsMs == 0 {
		e.TsMs = now.UnixMilli()
	}

	// Durable first. An event that never reached the store must not
	// influence a block decision.
	id, err := s.events.AppendEvent(e)
	if err != nil {
		return 0, nil, fmt.Errorf("append event: %w", err)
	}

	decision, err := s.engine.Observe(e.Key, e.Sample(), now)
	if err != nil {
		return id, nil, fmt.Errorf("evaluate event: %w", err)
	}

	return id, decision, nil
}

// RecentDecisions returns ledger entries newest first.
func (s *Service) RecentDecisions(filter storage.DecisionFilter) ([]detector.Decision, error) {
	return s.ledger.QueryDecisions(filter)
}

// ActiveBlocks returns the keys blocked at now, with their expiry instants.
func (s *Service) ActiveBlocks(now time.Time) map[string]int64 {
	return s.engine.Registry().Active(now.UnixMilli())
}

// Analyze produces a root-cause report for the requested range.
func (s *Service) Analyze(ctx context.Context, req analyze.Request, now time.Time) (*analyze.Report, error) {
	return s.analyzer.Analyze(ctx, req, now)
}

// Ready reports whether the service can serve traffic.
func (s *Service) Ready() error {
	if s.pinger == nil {
		return nil
	}
	if err := s.pinger.Ping(); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}
