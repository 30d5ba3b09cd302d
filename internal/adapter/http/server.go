package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

const dateLayout = "2006-01-02"

// Dataset supplies the current event table and reports whether one has been
// loaded yet.
type Dataset interface {
	sharedobs.ReadinessChecker
	Current() domain.Table
}

// EventsResponse is the body of GET /events.
type EventsResponse struct {
	Events  []domain.Event `json:"events"`
	Summary domain.Summary `json:"summary"`
}

// Server exposes the prepared event table plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	data       Dataset
	loc        *time.Location
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /events, /healthz, /readyz, and
// /metrics routes. Date parameters on /events are calendar days in loc.
func NewServer(addr string, data Dataset, loc *time.Location, logger *slog.Logger) *Server {
	if loc == nil {
		loc = time.UTC
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		data:   data,
		loc:    loc,
		logger: logger,
	}

	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(data))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleEvents filters the table to [start 00:00, end 24:00) in the display
// location. Either bound may be omitted.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if err := s.data.CheckReadiness(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	q := r.URL.Query()
	start, err := s.parseDay(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid start: %w", err))
		return
	}
	end, err := s.parseDay(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid end: %w", err))
		return
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("start %s is after end %s", q.Get("start"), q.Get("end")))
		return
	}
	if !end.IsZero() {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	table := s.data.Current().Between(start, end)
	events := table.Events()
	s.logger.Debug("events served", "start", q.Get("start"), "end", q.Get("end"), "count", len(events))
	sharedobs.WriteJSON(w, http.StatusOK, EventsResponse{Events: events, Summary: table.Summary()})
}

func (s *Server) parseDay(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, v, s.loc)
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
