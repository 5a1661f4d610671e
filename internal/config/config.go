package config

import (
	"fmt"
	"os"
	"time"

	"github.com/samijaber1/aegis-sentinel/internal/policy"
)

// Config holds server configuration
type Config struct {
	// Server settings
	Port int
	Host string

	// Storage settings
	DBPath string

	// Threshold settings. A policy file, when given, replaces all of them.
	PolicyFile       string
	Window           time.Duration
	BlockTTL         time.Duration
	Max429           int
	Max5xx           int
	MaxDisconnect    int
	MaxLatencyP95Ms  int64
	DisconnectStatus string

	// Narrative model settings. Analysis falls back to deterministic
	// summaries when the key or model is empty.
	GeminiAPIKey   string
	GeminiModel    string
	GeminiEndpoint string
	SummaryTimeout time.Duration

	// Operational settings
	GracefulShutdownTimeout time.Duration
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}

	if c.BlockTTL < c.Window {
		return fmt.Errorf("block TTL (%s) must not be shorter than the window (%s)", c.BlockTTL, c.Window)
	}

	if c.Max429 < 1 || c.Max5xx < 1 || c.MaxDisconnect < 1 {
		return fmt.Errorf("thresholds must be at least 1")
	}

	if c.MaxLatencyP95Ms < 1 {
		return fmt.Errorf("invalid p95 latency threshold: %d", c.MaxLatencyP95Ms)
	}

	if _, err := policy.ParseStatusSet(c.DisconnectStatus); err != nil {
		return fmt.Errorf("invalid disconnect status list: %w", err)
	}

	if c.GeminiAPIKey != "" && c.GeminiModel == "" {
		return fmt.Errorf("gemini model is required when an API key is set")
	}

	return nil
}

// Policy resolves the flag-level threshold settings into a runtime policy.
func (c *Config) Policy() (policy.Policy, error) {
	set, err := policy.ParseStatusSet(c.DisconnectStatus)
	if err != nil {
		return policy.Policy{}, err
	}

	return policy.Policy{
		Window:           c.Window,
		BlockTTL:         c.BlockTTL,
		Max429:           c.Max429,
		Max5xx:           c.Max5xx,
		MaxDisconnect:    c.MaxDisconnect,
		MaxLatencyP95Ms:  c.MaxLatencyP95Ms,
		DisconnectStatus: set,
	}, nil
}

// DefaultConfig returns default configuration. Secrets and deployment paths
// come from the environment so they never land on the command line.
func DefaultConfig() Config {
	def := policy.Default()

	cfg := Config{
		Port:                    8080,
		Host:                    "0.0.0.0",
		DBPath:                  "sentinel.db",
		Window:                  def.Window,
		BlockTTL:                def.BlockTTL,
		Max429:                  def.Max429,
		Max5xx:                  def.Max5xx,
		MaxDisconnect:           def.MaxDisconnect,
		MaxLatencyP95Ms:         def.MaxLatencyP95Ms,
		DisconnectStatus:        policy.FormatStatusSet(def.DisconnectStatus),
		GeminiEndpoint:          "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent",
		SummaryTimeout:          60 * time.Second,
		GracefulShutdownTimeout: 30 * time.Second,
	}

	if v := os.Getenv("SENTINEL_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}
	if v := os.Getenv("GEMINI_ENDPOINT"); v != "" {
		cfg.GeminiEndpoint = v
	}

	return cfg
}
