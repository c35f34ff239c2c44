// Package health serves the liveness endpoint and the metrics scrape
// surface on a small embedded HTTP server.
package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vaultbot/internal/metrics"
	"vaultbot/pkg/logx"
)

type Config struct {
	// Addr is the listen address, e.g. ":8080". Empty disables the server.
	Addr string
	// Pprof mounts the profiler under /debug. Keep it off unless the
	// listener is firewalled.
	Pprof bool
}

type Service struct {
	cfg     Config
	log     logx.Logger
	metrics *metrics.Metrics

	srv     *http.Server
	started time.Time
}

func New(cfg Config, m *metrics.Metrics, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		log:     log.With(logx.String("component", "health")),
		metrics: m,
	}
}

func (s *Service) Enabled() bool { return s.cfg.Addr != "" }

func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("running"))
	})
	r.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	if s.cfg.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}
	return r
}

func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// Start binds the listener synchronously so address errors surface to
// the caller, then serves in the background.
func (s *Service) Start(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.started = time.Now()
	s.srv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("server stopped", logx.Err(err))
		}
	}()
	s.log.Info("listening", logx.String("addr", ln.Addr().String()))
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
