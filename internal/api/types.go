package api

import "github.com/samijaber1/aegis-sentinel/internal/detector"

// HealthResponse is the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response
type ReadyResponse struct {
	Ready   bool     `json:"ready"`
	Reasons []string `json:"reasons,omitempty"`
}

// EventResponse acknowledges one ingested event. Decision is null unless
// this event tripped a rule.
type EventResponse struct {
	OK       bool               `json:"ok"`
	EventID  int64              `json:"eventID"`
	Decision *detector.Decision `json:"decision"`
}

// DecisionsResponse lists ledger entries, newest first
type DecisionsResponse struct {
	Decisions []detector.Decision `json:"decisions"`
	Total     int                 `json:"total"`
}

// BlocksResponse lists the currently blocked keys with expiry instants
type BlocksResponse struct {
	ActiveBlocks map[string]int64 `json:"activeBlocks"`
	NowMs        int64            `json:"nowMs"`
}

// ErrorResponse is a generic error response
type ErrorResponse struct {
	Error string `json:"error"`
}
