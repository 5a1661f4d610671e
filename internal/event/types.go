package event

// Event is one ingested request outcome as received from upstream
// traffic-handling components. Meta is passed through to storage untouched.
type Event struct {
	TsMs      int64                  `json:"tsMs,omitempty"`
	Key       string                 `json:"key" validate:"required"`
	Session   string                 `json:"session,omitempty"`
	Endpoint  string                 `json:"endpoint,omitempty"`
	Status    int                    `json:"status" validate:"required,gte=100,lte=599"`
	LatencyMs *int64                 `json:"latencyMs,omitempty" validate:"omitempty,gte=0"`
	Backend   string                 `json:"backend,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// Sample is the window-relevant reduction of an Event. LatencyMs is -1 when
// the latency was not measured. Immutable once created.
type Sample struct {
	TsMs      int64
	Status    int
	LatencyMs int64
	Endpoint  string
	Error     string
}

// Sample reduces the event to its window-relevant fields.
func (e *Event) Sample() Sample {
	latency := int64(-1)
	if e.LatencyMs != nil {
		latency = *e.LatencyMs
	}
	return Sample{
		TsMs:      e.TsMs,
		Status:    e.Status,
		LatencyMs: latency,
		Endpoint:  e.Endpoint,
		Error:     e.Error,
	}
}

// Measured reports whether the sample carries a measured latency.
func (s Sample) Measured() bool {
	return s.LatencyMs >= 0
}
