package stats

import (
	"reflect"
	"testing"

	"github.com/samijaber1/aegis-sentinel/internal/event"
)

var defaultDisconnect = map[int]struct{}{499: {}, 502: {}, 503: {}, 504: {}}

func sample(status int, latencyMs int64) event.Sample {
	return event.Sample{TsMs: 1000, Status: status, LatencyMs: latencyMs}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		samples []event.Sample
		want    Snapshot
		wantP95 *int64
	}{
		{
			name:    "empty window",
			samples: nil,
			want:    Snapshot{},
		},
		{
			name: "counts 429 and 5xx",
			samples: []event.Sample{
				sample(429, -1),
				sample(429, -1),
				sample(500, -1),
				sample(599, -1),
				sample(200, -1),
			},
			want: Snapshot{Count: 5, Count429: 2, Count5xx: 2},
		},
		{
			name: "disconnect overlaps 5xx",
			samples: []event.Sample{
				sample(499, -1),
				sample(502, -1),
				sample(503, -1),
			},
			// 502 and 503 count in both buckets; the counters are not
			// mutually exclusive.
			want: Snapshot{Count: 3, Count5xx: 2, DisconnectLike: 3},
		},
		{
			name: "unmeasured latencies excluded from percentile",
			samples: []event.Sample{
				sample(200, -1),
				sample(200, -1),
			},
			want: Snapshot{Count: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.samples, defaultDisconnect)
			got.LatencyP95Ms = nil // percentile checked separately
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Compute() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCompute_IsPure(t *testing.T) {
	samples := []event.Sample{
		sample(429, 100),
		sample(503, 300),
		sample(200, 200),
	}

	first := Compute(samples, defaultDisconnect)
	second := Compute(samples, defaultDisconnect)

	if first.Count != second.Count || first.Count429 != second.Count429 ||
		first.Count5xx != second.Count5xx || first.DisconnectLike != second.DisconnectLike {
		t.Errorf("Compute not deterministic: %+v vs %+v", first, second)
	}
	if *first.LatencyP95Ms != *second.LatencyP95Ms {
		t.Errorf("percentile not deterministic: %d vs %d", *first.LatencyP95Ms, *second.LatencyP95Ms)
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []int64
		p      float64
		want   *int64
	}{
		{
			name:   "empty",
			values: nil,
			p:      0.95,
			want:   nil,
		},
		{
			name:   "single value",
			values: []int64{42},
			p:      0.95,
			want:   int64Ptr(42),
		},
		{
			// n=5: rank round(0.95*4)=4 selects the last element.
			name:   "p95 of five values",
			values: []int64{100, 200, 300, 400, 500},
			p:      0.95,
			want:   int64Ptr(500),
		},
		{
			name:   "unsorted input",
			values: []int64{500, 100, 400, 200, 300},
			p:      0.5,
			want:   int64Ptr(300),
		},
		{
			name:   "p0 selects minimum",
			values: []int64{300, 100, 200},
			p:      0,
			want:   int64Ptr(100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.values, tt.p)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("Percentile() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("Percentile() = %d, want %d", *got, *tt.want)
			}
		})
	}
}

func TestPercentile_DoesNotMutateInput(t *testing.T) {
	values := []int64{500, 100, 300}
	Percentile(values, 0.95)
	if !reflect.DeepEqual(values, []int64{500, 100, 300}) {
		t.Errorf("input mutated: %v", values)
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}
