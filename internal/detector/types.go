package detector

import (
	"github.com/samijaber1/aegis-sentinel/internal/stats"
)

// KindBlock is the only decision kind this engine emits.
const KindBlock = "block"

// Evidence captures the statistics snapshot that triggered a decision.
type Evidence struct {
	Stats stats.Snapshot `json:"stats"`
}

// Decision is one immutable mitigation decision, written once to the ledger.
type Decision struct {
	TsMs     int64    `json:"tsMs"`
	Kind     string   `json:"kind"`
	Target   string   `json:"target"`
	TTLSec   int      `json:"ttlSec"`
	Reason   string   `json:"reason"`
	Evidence Evidence `json:"evidence"`
}

// ExpiresAtMs returns the instant the block lapses.
func (d *Decision) ExpiresAtMs() int64 {
	return d.TsMs + int64(d.TTLSec)*1000
}

// Ledger persists decisions durably. The engine treats a decision as made
// only after Append returns without error.
type Ledger interface {
	AppendDecision(d *Decision) (int64, error)
}
