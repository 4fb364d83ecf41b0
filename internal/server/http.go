package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eduardo-ufmg/2DoFSBP/internal/config"
	"github.com/eduardo-ufmg/2DoFSBP/internal/metrics"
)

// Status describes the most recent (or in-flight) acquisition session.
type Status struct {
	State       string    `json:"state"` // "idle", "running", "complete", "failed"
	StartedAt   time.Time `json:"started_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	SampleCount int       `json:"sample_count,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// StatusStore is a concurrency-safe holder for the current session status.
type StatusStore struct {
	mu     sync.RWMutex
	status Status
}

// NewStatusStore returns a store in the idle state.
func NewStatusStore() *StatusStore {
	return &StatusStore{status: Status{State: "idle"}}
}

// Set replaces the current status.
func (s *StatusStore) Set(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Get returns the current status.
func (s *StatusStore) Get() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Monitor serves the monitoring HTTP endpoints.
type Monitor struct {
	server  *http.Server
	logger  *slog.Logger
	config  *config.Config
	status  *StatusStore
	metrics *metrics.Metrics

	startTime time.Time
}

// NewMonitor creates the monitoring server.
func NewMonitor(cfg *config.Config, logger *slog.Logger, status *StatusStore, m *metrics.Metrics) *Monitor {
	h := &Monitor{
		logger:    logger,
		config:    cfg,
		status:    status,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/session", h.withMetrics("/session", h.handleSession))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.Handle("/metrics", promhttp.Handler())

	h.server = &http.Server{
		Addr:         cfg.Monitor.Address,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// withMetrics wraps a handler with request metrics collection.
func (h *Monitor) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		if h.metrics != nil {
			h.metrics.RecordHTTPRequest(r.Method, endpoint,
				fmt.Sprintf("%d", ww.statusCode), time.Since(startTime).Seconds())
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the monitoring server in the background.
func (h *Monitor) Start() error {
	h.logger.Info("starting monitoring server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("monitoring server failed", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (h *Monitor) Stop(ctx context.Context) error {
	h.logger.Info("stopping monitoring server")
	return h.server.Shutdown(ctx)
}

func (h *Monitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{
		"status":         "ok",
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

func (h *Monitor) handleSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.status.Get())
}

func (h *Monitor) handleConfig(w http.ResponseWriter, r *http.Request) {
	// The config carries no secrets, so it is returned as-is.
	h.writeJSON(w, h.config)
}

func (h *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
