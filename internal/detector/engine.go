package detector

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samijaber1/aegis-sentinel/internal/event"
	"github.com/samijaber1/aegis-sentinel/internal/policy"
	"github.com/samijaber1/aegis-sentinel/internal/stats"
	"github.com/samijaber1/aegis-sentinel/internal/window"
)

// Engine applies the threshold rules to a key's window and emits block
// decisions. Record-then-evaluate for a key runs as one serialized sequence
// under a single lock, so two concurrent events for the same key can never
// both pass the not-currently-blocked check.
type Engine struct {
	mu       sync.Mutex
	policy   policy.Policy
	windows  *window.Store
	registry *Registry
	ledger   Ledger
}

// NewEngine creates an engine over the given windows and ledger.
func NewEngine(pol policy.Policy, windows *window.Store, ledger Ledger) *Engine {
	return &Engine{
		policy:   pol,
		windows:  windows,
		registry: NewRegistry(),
		ledger:   ledger,
	}
}

// Observe records a sample for key and evaluates the decision rules.
// Returns the emitted decision, or nil when no rule fired or the key is
// still blocked. A ledger write failure aborts the decision: the registry is
// left untouched and the error is returned so the caller can retry on the
// next event.
func (e *Engine) Observe(key string, smp event.Sample, now time.Time) (*Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.windows.Record(key, smp)
	return e.evaluate(key, now)
}

// Evaluate runs the rules for key without recording a new sample.
func (e *Engine) Evaluate(key string, now time.Time) (*Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.evaluate(key, now)
}

func (e *Engine) evaluate(key string, now time.Time) (*Decision, error) {
	nowMs := now.UnixMilli()

	// A still-blocked key is not re-evaluated until its TTL lapses.
	if e.registry.Blocked(key, nowMs) {
		return nil, nil
	}

	snap := e.windows.Snapshot(key, now)
	st := stats.Compute(snap, e.policy.DisconnectStatus)

	reasons := e.matchRules(st)
	if len(reasons) == 0 {
		return nil, nil
	}

	d := &Decision{
		TsMs:     nowMs,
		Kind:     KindBlock,
		Target:   key,
		TTLSec:   e.policy.TTLSec(),
		Reason:   strings.Join(reasons, "; "),
		Evidence: Evidence{Stats: st},
	}

	// The ledger write must complete before the block takes effect.
	if _, err := e.ledger.AppendDecision(d); err != nil {
		return nil, fmt.Errorf("append decision for %s: %w", key, err)
	}

	e.registry.Set(key, d.ExpiresAtMs())
	return d, nil
}

// matchRules evaluates the four threshold rules in fixed order. All matched
// rules contribute a reason; the order fixes the reason order, not priority.
func (e *Engine) matchRules(st stats.Snapshot) []string {
	winSec := e.policy.WindowSec()

	var reasons []string
	if st.Count429 >= e.policy.Max429 {
		reasons = append(reasons, fmt.Sprintf("too many 429 in %ds (%d)", winSec, st.Count429))
	}
	if st.Count5xx >= e.policy.Max5xx {
		reasons = append(reasons, fmt.Sprintf("too many 5xx in %ds (%d)", winSec, st.Count5xx))
	}
	if st.DisconnectLike >= e.policy.MaxDisconnect {
		reasons = append(reasons, fmt.Sprintf("too many disconnect/timeout-like statuses in %ds (%d)", winSec, st.DisconnectLike))
	}
	if st.LatencyP95Ms != nil && *st.LatencyP95Ms >= e.policy.MaxLatencyP95Ms {
		reasons = append(reasons, fmt.Sprintf("p95 latency too high (%dms)", *st.LatencyP95Ms))
	}
	return reasons
}

// Registry returns the active-block registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// ActiveBlocks returns the keys blocked at now mapped to expiry instants.
func (e *Engine) ActiveBlocks(now time.Time) map[string]int64 {
	return e.registry.Active(now.UnixMilli())
}
