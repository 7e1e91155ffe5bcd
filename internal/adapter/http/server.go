package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/postfire-sar-etl/internal/adapter/cmr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes health, readiness, metrics, and granule lookup HTTP
// endpoints.
type Server struct {
	httpServer *http.Server
	granules   cmr.GranuleFinder
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics
// routes. When granules is non-nil it also serves /v1/granules for LiDAR
// coverage lookups over a bounding box.
func NewServer(addr string, ready ReadinessChecker, granules cmr.GranuleFinder, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		granules: granules,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if granules != nil {
		mux.HandleFunc("GET /v1/granules", s.handleGranules)
	}

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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleGranules(w http.ResponseWriter, r *http.Request) {
	q, err := parseGranuleQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	count, err := s.granules.GranuleCount(ctx, q.query)
	if err != nil {
		s.logger.Error("granule count failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	urls, err := s.granules.DownloadURLs(ctx, q.query, q.limit)
	if err != nil {
		s.logger.Error("granule search failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, granuleResponse{Count: count, URLs: urls})
}

type granuleQuery struct {
	query cmr.Query
	limit int
}

type granuleResponse struct {
	Count int      `json:"count"`
	URLs  []string `json:"urls"`
}

func parseGranuleQuery(r *http.Request) (granuleQuery, error) {
	params := r.URL.Query()

	box, err := parseBBox(params.Get("bbox"))
	if err != nil {
		return granuleQuery{}, err
	}
	start, err := parseTimeParam(params.Get("start"), "start")
	if err != nil {
		return granuleQuery{}, err
	}
	end, err := parseTimeParam(params.Get("end"), "end")
	if err != nil {
		return granuleQuery{}, err
	}

	limit := 100
	if raw := params.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return granuleQuery{}, fmt.Errorf("limit must be a positive integer")
		}
	}

	return granuleQuery{
		query: cmr.Query{Box: box, Start: start, End: end},
		limit: limit,
	}, nil
}

func parseBBox(raw string) (cmr.BBox, error) {
	parts := strings.Split(raw, ",")
	if raw == "" || len(parts) != 4 {
		return cmr.BBox{}, fmt.Errorf("bbox must be minLon,minLat,maxLon,maxLat")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return cmr.BBox{}, fmt.Errorf("bbox must be minLon,minLat,maxLon,maxLat")
		}
		vals[i] = v
	}
	return cmr.BBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}, nil
}

// parseTimeParam accepts RFC 3339 timestamps or bare dates.
func parseTimeParam(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%s must be RFC 3339 or YYYY-MM-DD", name)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
