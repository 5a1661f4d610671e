package window

import (
	"sync"
	"time"

	"github.com/samijaber1/aegis-sentinel/internal/event"
)

// Store owns one sliding time window of recent samples per key. Windows are
// created on first sample and pruned lazily; nothing sweeps them in the
// background.
type Store struct {
	mu      sync.RWMutex
	window  time.Duration
	samples map[string][]event.Sample
}

// NewStore creates a store with the given window duration.
func NewStore(window time.Duration) *Store {
	return &Store{
		window:  window,
		samples: make(map[string][]event.Sample),
	}
}

// Record appends a sample to the key's window and evicts entries older than
// the window relative to the newest inserted timestamp. Out-of-order
// timestamps are appended as-is: inputs are assumed non-decreasing per key,
// and a late sample only ever makes the window slightly over-inclusive until
// the next Snapshot prunes against real time.
func (s *Store) Record(key string, smp event.Sample) {
	cutoff := smp.TsMs - s.window.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	w := append(s.samples[key], smp)

	// Evict from the front only; entries are near-sorted so this matches
	// the deque behaviour of pruning a trailing window.
	i := 0
	for i < len(w) && w[i].TsMs < cutoff {
		i++
	}
	if i > 0 {
		w = append(w[:0:0], w[i:]...)
	}

	s.samples[key] = w
}

// Snapshot returns the key's current window contents, pruned against now so
// that a stale window never feeds a real-time decision. The returned slice is
// a copy. An unknown key yields an empty snapshot.
func (s *Store) Snapshot(key string, now time.Time) []event.Sample {
	cutoff := now.UnixMilli() - s.window.Milliseconds()

	s.mu.RLock()
	defer s.mu.RUnlock()

	w := s.samples[key]
	out := make([]event.Sample, 0, len(w))
	for _, smp := range w {
		if smp.TsMs >= cutoff {
			out = append(out, smp)
		}
	}
	return out
}

// Keys returns the number of keys with a window, pruned or not.
func (s *Store) Keys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}
