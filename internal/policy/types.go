package policy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Policy holds the resolved detection thresholds and timing configuration.
type Policy struct {
	Window           time.Duration
	BlockTTL         time.Duration
	Max429           int
	Max5xx           int
	MaxDisconnect    int
	MaxLatencyP95Ms  int64
	DisconnectStatus map[int]struct{}
}

// Default returns the default policy.
func Default() Policy {
	return Policy{
		Window:           60 * time.Second,
		BlockTTL:         900 * time.Second,
		Max429:           20,
		Max5xx:           15,
		MaxDisconnect:    10,
		MaxLatencyP95Ms:  2500,
		DisconnectStatus: map[int]struct{}{499: {}, 502: {}, 503: {}, 504: {}},
	}
}

// WindowSec returns the window duration in whole seconds.
func (p Policy) WindowSec() int {
	return int(p.Window / time.Second)
}

// TTLSec returns the block TTL in whole seconds.
func (p Policy) TTLSec() int {
	return int(p.BlockTTL / time.Second)
}

// ParseStatusSet parses a comma-separated status code list like
// "499,502,503,504" into a set.
func ParseStatusSet(s string) (map[int]struct{}, error) {
	set := make(map[int]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid status code %q: %w", part, err)
		}
		set[code] = struct{}{}
	}
	return set, nil
}

// FormatStatusSet renders a status set back to a sorted comma-separated list.
func FormatStatusSet(set map[int]struct{}) string {
	codes := make([]int, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = strconv.Itoa(code)
	}
	return strings.Join(parts, ",")
}

// File represents a parsed threshold policy document.
type File struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       Spec     `yaml:"spec"`
}

// Metadata contains policy metadata.
type Metadata struct {
	ID          string `yaml:"id"`
	Owner       string `yaml:"owner,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Spec contains the policy specification.
type Spec struct {
	Window           string `yaml:"window"`
	BlockTTL         string `yaml:"blockTTL"`
	Max429           int    `yaml:"max429"`
	Max5xx           int    `yaml:"max5xx"`
	MaxDisconnect    int    `yaml:"maxDisconnect"`
	MaxLatencyP95Ms  int64  `yaml:"maxLatencyP95Ms"`
	DisconnectStatus []int  `yaml:"disconnectStatus,omitempty"`
}

// Policy resolves the file into a runtime Policy. An absent disconnectStatus
// list falls back to the default set.
func (f *File) Policy() (Policy, error) {
	window, err := ParseDuration(f.Spec.Window)
	if err != nil {
		return Policy{}, fmt.Errorf("invalid window: %w", err)
	}

	ttl, err := ParseDuration(f.Spec.BlockTTL)
	if err != nil {
		return Policy{}, fmt.Errorf("invalid blockTTL: %w", err)
	}

	p := Default()
	p.Window = window
	p.BlockTTL = ttl
	p.Max429 = f.Spec.Max429
	p.Max5xx = f.Spec.Max5xx
	p.MaxDisconnect = f.Spec.MaxDisconnect
	p.MaxLatencyP95Ms = f.Spec.MaxLatencyP95Ms

	if len(f.Spec.DisconnectStatus) > 0 {
		set := make(map[int]struct{}, len(f.Spec.DisconnectStatus))
		for _, code := range f.Spec.DisconnectStatus {
			set[code] = struct{}{}
		}
		p.DisconnectStatus = set
	}

	return p, nil
}

// FileWithPath pairs a policy file with its source path.
type FileWithPath struct {
	File *File
	Path string
}

// ValidationError represents a validation error for a specific file.
type ValidationError struct {
	File    string
	Path    string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.File + ": " + e.Path + ": " + e.Message
	}
	return e.File + ": " + e.Message
}
