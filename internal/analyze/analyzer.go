package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/samijaber1/aegis-sentinel/internal/event"
	"github.com/samijaber1/aegis-sentinel/internal/policy"
	"github.com/samijaber1/aegis-sentinel/internal/stats"
	"github.com/samijaber1/aegis-sentinel/internal/storage"
)

const (
	defaultLookback = time.Hour
	defaultLimit    = 3000

	// Upper bounds on report size, applied to both narrative sources
	maxSummaryLen   = 2000
	maxKeyPoints    = 12
	maxActions      = 6
	maxPromptEvents = 200
	maxSummaryLines = 6
)

// NarrativeClient produces a free-text root-cause narrative for a prompt.
// Implemented by the Gemini client; nil means "fallback only".
type NarrativeClient interface {
	GenerateNarrative(ctx context.Context, prompt string) (string, error)
}

// Analyzer builds root-cause reports over the stored event history.
type Analyzer struct {
	store   storage.EventStore
	client  NarrativeClient
	policy  policy.Policy
	timeout time.Duration
}

// NewAnalyzer creates an analyzer. client may be nil, in which case every
// report uses the deterministic fallback.
func NewAnalyzer(store storage.EventStore, client NarrativeClient, pol policy.Policy, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Analyzer{
		store:   store,
		client:  client,
		policy:  pol,
		timeout: timeout,
	}
}

// Analyze loads the requested event range, computes supporting stats and
// produces a report. The external model is best-effort: any failure there
// degrades to the deterministic fallback, never to an error.
func (a *Analyzer) Analyze(ctx context.Context, req Request, now time.Time) (*Report, error) {
	filter := a.resolveFilter(req, now)

	events, err := a.store.QueryEvents(filter)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	samples := make([]event.Sample, 0, len(events))
	for i := range events {
		samples = append(samples, events[i].Sample())
	}
	snapshot := stats.Compute(samples, a.policy.DisconnectStatus)

	report := &Report{SupportingStats: snapshot}

	if a.client != nil {
		prompt, err := buildPrompt(snapshot, events)
		if err != nil {
			return nil, fmt.Errorf("build prompt: %w", err)
		}

		cctx, cancel := context.WithTimeout(ctx, a.timeout)
		text, gerr := a.client.GenerateNarrative(cctx, prompt)
		cancel()

		if gerr == nil {
			report.UsedExternalModel = true
			report.Summary, report.KeyPoints, report.SuggestedActions = parseNarrative(text)
			return report, nil
		}
		log.Printf("analyze: narrative model failed, using fallback: %v", gerr)
	}

	report.Summary, report.KeyPoints, report.SuggestedActions = a.fallback(snapshot)
	return report, nil
}

// resolveFilter applies the request defaults
func (a *Analyzer) resolveFilter(req Request, now time.Time) storage.EventFilter {
	toTs := req.ToTsMs
	if toTs == 0 {
		toTs = now.UnixMilli()
	}
	fromTs := req.FromTsMs
	if fromTs == 0 {
		fromTs = toTs - defaultLookback.Milliseconds()
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	return storage.EventFilter{
		FromTsMs: fromTs,
		ToTsMs:   toTs,
		Key:      req.Key,
		Session:  req.Session,
		Limit:    limit,
	}
}

// buildPrompt embeds the stats and the newest events as JSON. Only the tail
// of the range goes into the prompt to keep it bounded.
func buildPrompt(snapshot stats.Snapshot, events []event.Event) (string, error) {
	tail := events
	if len(tail) > maxPromptEvents {
		tail = tail[len(tail)-maxPromptEvents:]
	}

	statsJSON, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	eventsJSON, err := json.Marshal(tail)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are an SRE assistant. Analyze the following events and explain likely root causes.\n")
	b.WriteString("Return: short summary + key points + suggested actions.\n\n")
	fmt.Fprintf(&b, "Stats: %s\n", statsJSON)
	fmt.Fprintf(&b, "Events (last %d): %s\n", len(tail), eventsJSON)
	return b.String(), nil
}

// parseNarrative extracts a bounded report from the model's free text. The
// first few non-empty lines become the summary; bullet lines become key
// points and the leading key points double as suggested actions.
func parseNarrative(text string) (summary string, keyPoints, actions []string) {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			lines = append(lines, ln)
		}
	}

	if len(lines) == 0 {
		summary = text
	} else {
		head := lines
		if len(head) > maxSummaryLines {
			head = head[:maxSummaryLines]
		}
		summary = strings.Join(head, "\n")
	}

	keyPoints = []string{}
	for _, ln := range lines {
		if !strings.HasPrefix(ln, "-") && !strings.HasPrefix(ln, "•") {
			continue
		}
		point := strings.TrimSpace(strings.TrimLeft(ln, "-• "))
		if point == "" {
			continue
		}
		keyPoints = append(keyPoints, point)
		if len(keyPoints) == maxKeyPoints {
			break
		}
	}

	actions = keyPoints
	if len(actions) > maxActions {
		actions = actions[:maxActions]
	}

	return truncate(summary, maxSummaryLen), keyPoints, actions
}

// fallback derives the report directly from the counters
func (a *Analyzer) fallback(snapshot stats.Snapshot) (summary string, keyPoints, actions []string) {
	keyPoints = []string{}
	if snapshot.Count429 >= 1 {
		keyPoints = append(keyPoints, "429 detected: possible rate limiting / protection")
	}
	if snapshot.Count5xx >= 1 {
		keyPoints = append(keyPoints, "5xx detected: backend crash/restart/timeout")
	}
	if snapshot.DisconnectLike >= 1 {
		keyPoints = append(keyPoints, "disconnect-like statuses detected")
	}
	if snapshot.LatencyP95Ms != nil && *snapshot.LatencyP95Ms >= a.policy.MaxLatencyP95Ms {
		keyPoints = append(keyPoints, "p95 latency high: saturation or downstream slowness")
	}

	if len(keyPoints) > 0 {
		summary = strings.Join(keyPoints, " | ")
	} else {
		summary = "Insufficient signal; widen time range or filter by key/session."
	}

	actions = []string{
		"Lower request rate temporarily for affected sessions",
		"Mark the suspect backend as bad and rotate sessions",
		"Inspect logs around the spike window",
	}

	return truncate(summary, maxSummaryLen), keyPoints, actions
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
