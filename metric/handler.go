package metric

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/topstack/errors"
)

const (
	defaultMetricsAddr = ":9090"
	defaultMetricsPath = "/metrics"
	healthPath         = "/health"
)

// Server serves a registry in the Prometheus exposition format next to a
// /health probe.
type Server struct {
	addr     string
	path     string
	registry *MetricsRegistry

	mu     sync.Mutex
	health http.Handler
	http   *http.Server
}

// NewServer creates a server for registry. Empty addr and path fall back to
// :9090 and /metrics.
func NewServer(addr, path string, registry *MetricsRegistry) *Server {
	s := &Server{addr: addr, path: path, registry: registry}
	if s.addr == "" {
		s.addr = defaultMetricsAddr
	}
	if s.path == "" {
		s.path = defaultMetricsPath
	}
	return s
}

// SetHealthHandler replaces the default /health probe, which always answers OK.
// Call it before Start.
func (s *Server) SetHealthHandler(h http.Handler) {
	s.mu.Lock()
	s.health = h
	s.mu.Unlock()
}

// Handler returns the mux serving metrics and the health probe
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	health := s.health
	s.mu.Unlock()
	if health == nil {
		health = http.HandlerFunc(alwaysOK)
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.Handle(healthPath, health)
	return mux
}

func alwaysOK(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Start serves until Stop is called. It returns nil after a clean Stop.
func (s *Server) Start() error {
	if s.registry == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Server", "Start", "metrics registry not provided")
	}

	s.mu.Lock()
	if s.http != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.New("server already running"), "Server", "Start", "start metrics server")
	}
	srv := &http.Server{Addr: s.addr, ReadHeaderTimeout: 5 * time.Second}
	s.http = srv
	s.mu.Unlock()

	srv.Handler = s.Handler()
	err := srv.ListenAndServe()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.WrapFatal(err, "Server", "Start", "serve on "+s.addr)
}

// Stop shuts the server down. A stopped server may be started again.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.http = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "shut down metrics server")
	}
	return nil
}

// Address returns the metrics URL
func (s *Server) Address() string {
	return fmt.Sprintf("http://%s%s", s.addr, s.path)
}
