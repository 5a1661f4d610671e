package detector

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/samijaber1/aegis-sentinel/internal/event"
	"github.com/samijaber1/aegis-sentinel/internal/policy"
	"github.com/samijaber1/aegis-sentinel/internal/window"
)

// fakeLedger records appended decisions in memory and can be told to fail.
type fakeLedger struct {
	decisions []*Decision
	failNext  bool
}

func (l *fakeLedger) AppendDecision(d *Decision) (int64, error) {
	if l.failNext {
		l.failNext = false
		return 0, errors.New("ledger unavailable")
	}
	l.decisions = append(l.decisions, d)
	return int64(len(l.decisions)), nil
}

func newTestEngine() (*Engine, *fakeLedger, policy.Policy) {
	pol := policy.Default()
	ledger := &fakeLedger{}
	engine := NewEngine(pol, window.NewStore(pol.Window), ledger)
	return engine, ledger, pol
}

func TestEngine_BlocksAfter429Threshold(t *testing.T) {
	engine, ledger, pol := newTestEngine()

	base := int64(1_000_000)
	var decision *Decision

	// 25 consecutive 429s inside one window. The decision must land exactly
	// when the count first reaches the threshold.
	for i := 0; i < 25; i++ {
		ts := base + int64(i)*1000
		d, err := engine.Observe("1.2.3.4", event.Sample{TsMs: ts, Status: 429, LatencyMs: -1}, time.UnixMilli(ts))
		if err != nil {
			t.Fatalf("event %d: unexpected error: %v", i+1, err)
		}
		if d != nil {
			if i+1 != pol.Max429 {
				t.Fatalf("decision emitted at event %d, want event %d", i+1, pol.Max429)
			}
			decision = d
		}
	}

	if decision == nil {
		t.Fatal("expected a block decision, got none")
	}
	if decision.Kind != KindBlock || decision.Target != "1.2.3.4" {
		t.Errorf("unexpected decision: %+v", decision)
	}
	if decision.TTLSec != pol.TTLSec() {
		t.Errorf("expected ttlSec=%d, got %d", pol.TTLSec(), decision.TTLSec)
	}
	if !strings.Contains(decision.Reason, "too many 429 in 60s (20)") {
		t.Errorf("unexpected reason: %q", decision.Reason)
	}
	if decision.Evidence.Stats.Count429 != 20 {
		t.Errorf("expected evidence count429=20, got %d", decision.Evidence.Stats.Count429)
	}

	// Events 21-25 must not produce further decisions.
	if len(ledger.decisions) != 1 {
		t.Errorf("expected exactly 1 ledger entry, got %d", len(ledger.decisions))
	}
	if !engine.Registry().Blocked("1.2.3.4", base+25_000) {
		t.Error("expected key to be blocked in the registry")
	}
}

func TestEngine_MultipleRulesFireTogether(t *testing.T) {
	engine, ledger, _ := newTestEngine()

	base := int64(1_000_000)
	now := time.UnixMilli(base + 30_000)

	// Enough 429s, 5xx and slow samples to trip three rules at once.
	for i := 0; i < 20; i++ {
		engine.windows.Record("k", event.Sample{TsMs: base + int64(i), Status: 429, LatencyMs: -1})
	}
	for i := 0; i < 15; i++ {
		engine.windows.Record("k", event.Sample{TsMs: base + 100 + int64(i), Status: 500, LatencyMs: 9000})
	}

	d, err := engine.Evaluate("k", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil {
		t.Fatal("expected a decision")
	}

	parts := strings.Split(d.Reason, "; ")
	if len(parts) != 3 {
		t.Fatalf("expected 3 reasons, got %d: %q", len(parts), d.Reason)
	}
	// Fixed rule order: 429, then 5xx, then p95.
	if !strings.Contains(parts[0], "429") {
		t.Errorf("expected 429 reason first, got %q", parts[0])
	}
	if !strings.Contains(parts[1], "5xx") {
		t.Errorf("expected 5xx reason second, got %q", parts[1])
	}
	if !strings.Contains(parts[2], "p95 latency") {
		t.Errorf("expected p95 reason third, got %q", parts[2])
	}
	if len(ledger.decisions) != 1 {
		t.Errorf("expected one decision for all matched rules, got %d", len(ledger.decisions))
	}
}

func TestEngine_NonTriggeringInputLeavesNoTrace(t *testing.T) {
	engine, ledger, _ := newTestEngine()

	base := int64(1_000_000)
	for i := 0; i < 100; i++ {
		ts := base + int64(i)*1000
		d, err := engine.Observe("quiet", event.Sample{TsMs: ts, Status: 200, LatencyMs: 50}, time.UnixMilli(ts))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d != nil {
			t.Fatalf("unexpected decision for healthy traffic: %+v", d)
		}
	}

	if len(ledger.decisions) != 0 {
		t.Errorf("expected empty ledger, got %d entries", len(ledger.decisions))
	}
	if engine.Registry().Size() != 0 {
		t.Errorf("expected empty registry, got %d entries", engine.Registry().Size())
	}
}

func TestEngine_EmptyWindowTriggersNothing(t *testing.T) {
	engine, _, _ := newTestEngine()

	d, err := engine.Evaluate("never-seen", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != nil {
		t.Errorf("expected no decision for empty window, got %+v", d)
	}
}

func TestEngine_BlockExpiresLazily(t *testing.T) {
	engine, ledger, _ := newTestEngine()

	base := int64(1_000_000)
	for i := 0; i < 20; i++ {
		ts := base + int64(i)*100
		engine.Observe("k", event.Sample{TsMs: ts, Status: 429, LatencyMs: -1}, time.UnixMilli(ts))
	}
	if len(ledger.decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(ledger.decisions))
	}
	blockedAt := ledger.decisions[0].TsMs
	expiry := ledger.decisions[0].ExpiresAtMs()

	// One instant before expiry: still suppressed.
	ts := expiry - 1
	d, err := engine.Observe("k", event.Sample{TsMs: ts, Status: 429, LatencyMs: -1}, time.UnixMilli(ts))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != nil {
		t.Fatalf("decision emitted before TTL lapsed (blockedAt=%d, expiry=%d)", blockedAt, expiry)
	}

	// After expiry a qualifying burst produces exactly one new decision.
	var again int
	for i := 0; i < 25; i++ {
		ts := expiry + int64(i)*100
		d, err := engine.Observe("k", event.Sample{TsMs: ts, Status: 429, LatencyMs: -1}, time.UnixMilli(ts))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d != nil {
			again++
		}
	}
	if again != 1 {
		t.Errorf("expected exactly 1 new decision after expiry, got %d", again)
	}
	if len(ledger.decisions) != 2 {
		t.Errorf("expected 2 ledger entries, got %d", len(ledger.decisions))
	}
}

func TestEngine_LedgerFailureAbortsDecision(t *testing.T) {
	engine, ledger, _ := newTestEngine()

	base := int64(1_000_000)
	for i := 0; i < 19; i++ {
		ts := base + int64(i)*100
		engine.Observe("k", event.Sample{TsMs: ts, Status: 429, LatencyMs: -1}, time.UnixMilli(ts))
	}

	// The 20th event crosses the threshold but the ledger write fails: no
	// decision, no registry entry.
	ledger.failNext = true
	ts := base + 19*100
	d, err := engine.Observe("k", event.Sample{TsMs: ts, Status: 429, LatencyMs: -1}, time.UnixMilli(ts))
	if err == nil {
		t.Fatal("expected error from failed ledger write")
	}
	if d != nil {
		t.Errorf("expected no decision on ledger failure, got %+v", d)
	}
	if engine.Registry().Blocked("k", ts) {
		t.Error("registry updated despite failed ledger write")
	}

	// The next event re-runs the rules and succeeds.
	ts = base + 20*100
	d, err = engine.Observe("k", event.Sample{TsMs: ts, Status: 429, LatencyMs: -1}, time.UnixMilli(ts))
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if d == nil {
		t.Fatal("expected decision on retry after ledger recovery")
	}
	if !engine.Registry().Blocked("k", ts) {
		t.Error("expected key blocked after successful retry")
	}
}

func TestEngine_DisconnectRule(t *testing.T) {
	engine, _, _ := newTestEngine()

	base := int64(1_000_000)
	var decision *Decision
	for i := 0; i < 10; i++ {
		ts := base + int64(i)*100
		d, err := engine.Observe("k", event.Sample{TsMs: ts, Status: 502, LatencyMs: -1}, time.UnixMilli(ts))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d != nil {
			decision = d
		}
	}

	if decision == nil {
		t.Fatal("expected disconnect rule to fire")
	}
	if !strings.Contains(decision.Reason, "disconnect/timeout-like") {
		t.Errorf("unexpected reason: %q", decision.Reason)
	}
	// 502 is both 5xx and disconnect-like; at 10 samples only the
	// disconnect rule (threshold 10) has tripped, not the 5xx rule (15).
	if strings.Contains(decision.Reason, "too many 5xx") {
		t.Errorf("5xx rule fired below threshold: %q", decision.Reason)
	}
}
