package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/samijaber1/aegis-sentinel/internal/analyze"
	"github.com/samijaber1/aegis-sentinel/internal/detector"
	"github.com/samijaber1/aegis-sentinel/internal/event"
	"github.com/samijaber1/aegis-sentinel/internal/sentinel"
	"github.com/samijaber1/aegis-sentinel/internal/storage"
)

// Server is the HTTP API server
type Server struct {
	service   *sentinel.Service
	validator *event.Validator
	server    *http.Server

	// now is swappable so tests can pin the clock
	now func() time.Time
}

// NewServer creates a new API server
func NewServer(service *sentinel.Service, addr string) *Server {
	s := &Server{
		service:   service,
		validator: event.NewValidator(),
		now:       time.Now,
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	// Ingestion endpoint
	mux.HandleFunc("/v1/event", s.handleEvent)

	// Ledger and block registry endpoints
	mux.HandleFunc("/v1/decisions", s.handleDecisions)
	mux.HandleFunc("/v1/blocks", s.handleBlocks)

	// Analysis endpoint
	mux.HandleFunc("/v1/analyze", s.handleAnalyze)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second, // analyze waits on the model
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.service.Ready(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Ready:   false,
			Reasons: []string{err.Error()},
		})
		return
	}

	respondJSON(w, http.StatusOK, ReadyResponse{Ready: true})
}

// handleEvent handles POST /v1/event
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var e event.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if err := s.validator.Validate(&e); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid event: %v", err))
		return
	}

	id, decision, err := s.service.Ingest(&e, s.now())
	if err != nil {
		// Durable writes failed; the caller may retry the same event.
		respondError(w, http.StatusServiceUnavailable, fmt.Sprintf("ingest failed: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, EventResponse{
		OK:       true,
		EventID:  id,
		Decision: decision,
	})
}

// handleDecisions handles GET /v1/decisions
func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	filter := storage.DecisionFilter{
		Target: query.Get("target"),
	}

	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %q", v))
			return
		}
		filter.Limit = limit
	}

	if v := query.Get("fromTs"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid fromTs: %q", v))
			return
		}
		filter.FromTsMs = ts
	}

	if v := query.Get("toTs"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid toTs: %q", v))
			return
		}
		filter.ToTsMs = ts
	}

	decisions, err := s.service.RecentDecisions(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query decisions: %v", err))
		return
	}
	if decisions == nil {
		decisions = []detector.Decision{}
	}

	respondJSON(w, http.StatusOK, DecisionsResponse{
		Decisions: decisions,
		Total:     len(decisions),
	})
}

// handleBlocks handles GET /v1/blocks
func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := s.now()
	respondJSON(w, http.StatusOK, BlocksResponse{
		ActiveBlocks: s.service.ActiveBlocks(now),
		NowMs:        now.UnixMilli(),
	})
}

// handleAnalyze handles POST /v1/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req analyze.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	report, err := s.service.Analyze(r.Context(), req, s.now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("analysis failed: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
