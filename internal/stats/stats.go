package stats

import (
	"math"
	"sort"

	"github.com/samijaber1/aegis-sentinel/internal/event"
)

// Snapshot holds the counters derived from a window of samples. It is
// computed fresh at decision time and never cached.
type Snapshot struct {
	Count          int    `json:"count"`
	Count429       int    `json:"count429"`
	Count5xx       int    `json:"count5xx"`
	DisconnectLike int    `json:"disconnectLike"`
	LatencyP95Ms   *int64 `json:"latencyP95Ms,omitempty"`
}

// Compute derives a Snapshot from a window of samples. count5xx and
// disconnectLike may overlap for statuses in both the 5xx range and the
// disconnect set; the two counters measure different failure semantics.
func Compute(samples []event.Sample, disconnect map[int]struct{}) Snapshot {
	snap := Snapshot{Count: len(samples)}

	var latencies []int64
	for _, s := range samples {
		if s.Status == 429 {
			snap.Count429++
		}
		if s.Status >= 500 && s.Status <= 599 {
			snap.Count5xx++
		}
		if _, ok := disconnect[s.Status]; ok {
			snap.DisconnectLike++
		}
		if s.Measured() {
			latencies = append(latencies, s.LatencyMs)
		}
	}

	snap.LatencyP95Ms = Percentile(latencies, 0.95)
	return snap
}

// Percentile returns the nearest-rank percentile of values, or nil if values
// is empty. Rank is round(p*(n-1)) clamped to [0, n-1].
func Percentile(values []int64, p float64) *int64 {
	if len(values) == 0 {
		return nil
	}

	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	k := int(math.Round(p * float64(len(sorted)-1)))
	if k < 0 {
		k = 0
	}
	if k > len(sorted)-1 {
		k = len(sorted) - 1
	}

	v := sorted[k]
	return &v
}
