// Package server exposes the operational HTTP surface: a liveness probe,
// the authenticated manual sweep trigger, the configuration export and
// Prometheus metrics.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"statusninja/internal/registry"
	logx "statusninja/pkg/logx"
)

type Config struct {
	Addr     string
	APIToken string // bearer secret for the manual trigger + export
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8080"
	}
	return c
}

// SweepRunner triggers one health sweep.
type SweepRunner interface {
	RunSweep(ctx context.Context)
}

type Server struct {
	cfg      Config
	registry *registry.Service
	sweeper  SweepRunner
	log      logx.Logger

	// sweepCtx outlives individual requests: a manually triggered sweep is
	// detached so the HTTP call returns immediately.
	sweepCtx context.Context

	srv *http.Server
	ln  net.Listener
}

func New(cfg Config, reg *registry.Service, sweeper SweepRunner, log logx.Logger) *Server {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, registry: reg, sweeper: sweeper, log: log}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Post("/run-health-check", s.handleRunHealthCheck)
		r.Get("/export-config", s.handleExportConfig)
	})
	return r
}

// Start begins serving. The given ctx is retained as the parent of
// detached sweeps.
func (s *Server) Start(ctx context.Context) error {
	s.sweepCtx = ctx

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", logx.String("addr", s.cfg.Addr), logx.Err(err))
		}
	}()
	s.log.Info("http server started", logx.String("addr", ln.Addr().String()))
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	s.srv = nil
	s.ln = nil
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRunHealthCheck(w http.ResponseWriter, r *http.Request) {
	// Detached: the sweep runs on the server's app context, not the
	// request context, so the trigger call can return immediately.
	ctx := s.sweepCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go s.sweeper.RunSweep(ctx)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("Health check triggered\n"))
}

func (s *Server) handleExportConfig(w http.ResponseWriter, r *http.Request) {
	exports, err := s.registry.ExportConfig(r.Context())
	if err != nil {
		s.log.Error("config export failed", logx.Err(err))
		http.Error(w, "Error exporting configuration", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"apis": exports})
}

// requireBearer enforces the configured bearer secret.
// Missing or mismatched tokens receive 401.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || s.cfg.APIToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIToken)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
