package analyze

import "github.com/samijaber1/aegis-sentinel/internal/stats"

// Request selects the slice of stored events to analyze. Zero values mean
// "use the default": ToTsMs defaults to now, FromTsMs to one hour before
// ToTsMs, Limit to 3000.
type Request struct {
	FromTsMs int64  `json:"fromTs,omitempty"`
	ToTsMs   int64  `json:"toTs,omitempty"`
	Key      string `json:"key,omitempty"`
	Session  string `json:"session,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Report is the root-cause summary for one analyzed range.
type Report struct {
	// UsedExternalModel is true only when the narrative came from the
	// external model; the deterministic fallback always reports false.
	UsedExternalModel bool           `json:"usedExternalModel"`
	Summary           string         `json:"summary"`
	KeyPoints         []string       `json:"keyPoints"`
	SuggestedActions  []string       `json:"suggestedActions"`
	SupportingStats   stats.Snapshot `json:"supportingStats"`
}
