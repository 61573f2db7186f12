// Package api exposes the operator stats surface over HTTP.
//
// It serves plain structured snapshots of the scheduler and memory store for
// polling by an operator or dashboard, plus a manual check trigger. The
// patient-facing chat front door is a separate system and not served here.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oumacare/ancare/internal/models"
)

// DefaultAddr is the default listen address for the stats surface.
const DefaultAddr = ":8090"

const shutdownTimeout = 5 * time.Second

// SchedulerControl is the slice of the wake scheduler the stats surface
// needs: a snapshot and an out-of-band check trigger.
type SchedulerControl interface {
	Stats() models.SchedulerStats
	TriggerImmediateCheck(ctx context.Context) (models.CheckSummary, error)
}

// MemoryStatser reports session/memory store statistics.
type MemoryStatser interface {
	Stats() models.MemoryStats
}

// Opts holds configuration for the stats server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the stats server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server serves the operator stats endpoints.
type Server struct {
	addr      string
	scheduler SchedulerControl
	memory    MemoryStatser
}

// NewServer creates a stats server over the given scheduler and memory store.
func NewServer(scheduler SchedulerControl, memory MemoryStatser, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{addr: cfg.Addr, scheduler: scheduler, memory: memory}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/v1/scheduler/stats", s.handleSchedulerStats)
	r.Get("/v1/memory/stats", s.handleMemoryStats)
	r.Post("/v1/scheduler/check", s.handleImmediateCheck)

	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("stats surface listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("stats surface shutdown failed", "error", err)
			return err
		}
		slog.Info("stats surface stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Success("healthy"))
}

func (s *Server) handleSchedulerStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Success(s.scheduler.Stats()))
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Success(s.memory.Stats()))
}

func (s *Server) handleImmediateCheck(w http.ResponseWriter, r *http.Request) {
	summary, err := s.scheduler.TriggerImmediateCheck(r.Context())
	if err != nil {
		slog.Error("manual reminder check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.Error(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, models.Success(summary))
}

func writeJSON(w http.ResponseWriter, status int, body models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode API response", "error", err)
	}
}
