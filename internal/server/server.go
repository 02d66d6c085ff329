package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speedwagon-io/amtron-exporter/internal/lib/logger/sl"
	"github.com/speedwagon-io/amtron-exporter/internal/metrics"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

type HealthChecker interface {
	Name() string
	Check(ctx context.Context) (Status, string)
}

// Server exposes the metrics exposition at / and health endpoints alongside
// it. Serving only reads the current snapshot through the registry; it never
// talks to the device.
type Server struct {
	log      *slog.Logger
	address  string
	gatherer prometheus.Gatherer
	server   *http.Server
	checkers []HealthChecker
	mu       sync.RWMutex
}

func New(log *slog.Logger, address string, gatherer prometheus.Gatherer) *Server {
	return &Server{
		log:      log,
		address:  address,
		gatherer: gatherer,
		checkers: make([]HealthChecker, 0),
	}
}

func (s *Server) AddChecker(checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers = append(s.checkers, checker)
}

// Handler builds the router: the exposition at / and health endpoints next
// to it.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Method(http.MethodGet, "/", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)

	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info("starting exposition server", slog.String("address", s.address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("exposition server error", sl.Err(err))
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checkers := make([]HealthChecker, len(s.checkers))
	copy(checkers, s.checkers)
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:     StatusHealthy,
		Components: make([]ComponentHealth, 0, len(checkers)),
		Timestamp:  time.Now().UTC(),
	}

	for _, checker := range checkers {
		status, message := checker.Check(ctx)
		response.Components = append(response.Components, ComponentHealth{
			Name:    checker.Name(),
			Status:  status,
			Message: message,
		})

		if status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// PollerState is the slice of the poll scheduler the health check reads.
type PollerState interface {
	ConsecutiveFailures() int64
}

// PollerHealthChecker reports the poll loop's view of the device. Scrapes
// stay 200 regardless; this only feeds the /health endpoint.
type PollerHealthChecker struct {
	state PollerState
	store *metrics.Store
}

func NewPollerHealthChecker(state PollerState, store *metrics.Store) *PollerHealthChecker {
	return &PollerHealthChecker{state: state, store: store}
}

func (c *PollerHealthChecker) Name() string {
	return "poller"
}

func (c *PollerHealthChecker) Check(ctx context.Context) (Status, string) {
	failures := c.state.ConsecutiveFailures()

	if c.store.Current() == nil {
		if failures > 0 {
			return StatusUnhealthy, "no successful poll since startup"
		}
		return StatusHealthy, "waiting for first poll"
	}

	if failures >= 3 {
		return StatusDegraded, fmt.Sprintf("%d consecutive poll failures, serving stale snapshot", failures)
	}

	return StatusHealthy, ""
}
