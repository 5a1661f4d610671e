package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/samijaber1/aegis-sentinel/internal/analyze"
	"github.com/samijaber1/aegis-sentinel/internal/analyze/gemini"
	"github.com/samijaber1/aegis-sentinel/internal/api"
	"github.com/samijaber1/aegis-sentinel/internal/config"
	"github.com/samijaber1/aegis-sentinel/internal/policy"
	"github.com/samijaber1/aegis-sentinel/internal/sentinel"
	"github.com/samijaber1/aegis-sentinel/internal/storage/sqlite"
)

func main() {
	// Parse flags
	cfg := parseFlags()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting AegisSentinel server...")
	log.Printf("Config: port=%d, db=%s, window=%s, block-ttl=%s", cfg.Port, cfg.DBPath, cfg.Window, cfg.BlockTTL)

	// Resolve the threshold policy
	pol, err := resolvePolicy(cfg)
	if err != nil {
		log.Fatalf("Failed to resolve policy: %v", err)
	}

	// Open the event store and decision ledger
	store, err := sqlite.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Create the narrative model client when configured
	var narrative analyze.NarrativeClient
	if cfg.GeminiAPIKey != "" && cfg.GeminiModel != "" {
		gcfg := gemini.DefaultConfig(cfg.GeminiAPIKey, cfg.GeminiModel)
		gcfg.Endpoint = cfg.GeminiEndpoint
		gcfg.Timeout = cfg.SummaryTimeout
		narrative = gemini.NewClient(gcfg)
		log.Printf("Using Gemini model: %s", cfg.GeminiModel)
	} else {
		log.Printf("No Gemini model configured, analysis uses deterministic fallback")
	}

	// Wire the service
	service := sentinel.New(pol, store, store, sentinel.Options{
		Narrative:      narrative,
		SummaryTimeout: cfg.SummaryTimeout,
		Pinger:         store,
	})

	// Create and start HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	apiServer := api.NewServer(service, addr)

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- apiServer.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Received signal: %v", sig)

		// Graceful shutdown
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
		defer cancel()

		log.Println("Shutting down server...")
		if err := apiServer.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}

		log.Println("Shutdown complete")
	}
}

// resolvePolicy picks the policy file when one is given, flags otherwise.
// A policy file must pass schema validation before it is used.
func resolvePolicy(cfg config.Config) (policy.Policy, error) {
	if cfg.PolicyFile == "" {
		return cfg.Policy()
	}

	schemaPath := findSchemaFile()
	if schemaPath != "" {
		validator, err := policy.NewValidator(schemaPath)
		if err != nil {
			return policy.Policy{}, fmt.Errorf("initialize validator: %w", err)
		}
		if errs := validator.ValidateFile(cfg.PolicyFile); len(errs) > 0 {
			for _, e := range errs {
				log.Printf("Policy error: %s", e.Error())
			}
			return policy.Policy{}, fmt.Errorf("policy file %s failed validation with %d error(s)", cfg.PolicyFile, len(errs))
		}
	} else {
		log.Printf("Schema file not found, skipping policy schema validation")
	}

	pf, err := policy.LoadFile(cfg.PolicyFile)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("load policy file: %w", err)
	}

	pol, err := pf.Policy()
	if err != nil {
		return policy.Policy{}, fmt.Errorf("resolve policy file: %w", err)
	}

	log.Printf("Loaded policy %s from %s", pf.Metadata.ID, cfg.PolicyFile)
	return pol, nil
}

// findSchemaFile looks for the schema file in common locations
func findSchemaFile() string {
	candidates := []string{
		"schemas/policy_v1.json",
		"../schemas/policy_v1.json",
		"../../schemas/policy_v1.json",
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func parseFlags() config.Config {
	cfg := config.DefaultConfig()

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "HTTP server host")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.PolicyFile, "policy-file", cfg.PolicyFile, "Threshold policy YAML file (overrides threshold flags)")
	flag.DurationVar(&cfg.Window, "window", cfg.Window, "Sliding window length")
	flag.DurationVar(&cfg.BlockTTL, "block-ttl", cfg.BlockTTL, "Block decision TTL")
	flag.IntVar(&cfg.Max429, "max-429", cfg.Max429, "429 count threshold per window")
	flag.IntVar(&cfg.Max5xx, "max-5xx", cfg.Max5xx, "5xx count threshold per window")
	flag.IntVar(&cfg.MaxDisconnect, "max-disconnect", cfg.MaxDisconnect, "Disconnect-like count threshold per window")
	flag.Int64Var(&cfg.MaxLatencyP95Ms, "max-p95-ms", cfg.MaxLatencyP95Ms, "p95 latency threshold in milliseconds")
	flag.StringVar(&cfg.DisconnectStatus, "disconnect-status", cfg.DisconnectStatus, "Comma-separated disconnect-like status codes")
	flag.DurationVar(&cfg.SummaryTimeout, "summary-timeout", cfg.SummaryTimeout, "Timeout for one narrative model call")

	flag.Parse()

	return cfg
}
