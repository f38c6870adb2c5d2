// Package api serves the storm catalogue over HTTP: health and status
// endpoints, storm queries in JSON/GeoJSON/CSV, seasonal statistics, and the
// published artifact directory.
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leosaffin/storm-assess/internal/cache"
	"github.com/leosaffin/storm-assess/internal/catalog"
	"github.com/leosaffin/storm-assess/internal/config"
	"github.com/leosaffin/storm-assess/internal/jobs"
	"github.com/leosaffin/storm-assess/internal/log"
	"github.com/leosaffin/storm-assess/internal/regions"
)

// Server carries the handler dependencies.
type Server struct {
	cfg        config.Config
	store      *catalog.Store
	runner     *jobs.Runner
	cache      cache.Cache
	classifier *regions.Classifier
	version    string
}

// NewServer builds the API server.
func NewServer(cfg config.Config, store *catalog.Store, runner *jobs.Runner, c cache.Cache, classifier *regions.Classifier, version string) *Server {
	return &Server{
		cfg:        cfg,
		store:      store,
		runner:     runner,
		cache:      c,
		classifier: classifier,
		version:    version,
	}
}

// Router assembles the middleware stack and routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(httpMetrics)
	if s.cfg.TracingEnabled {
		r.Use(tracing)
	}
	r.Use(requestLogging)
	r.Use(rateLimit(s.cfg.RateLimit, s.cfg.RateLimitWindow))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/ingest", s.handleIngest)
		r.Get("/storms", s.handleListStorms)
		r.Get("/storms/{id}", s.handleGetStorm)
		r.Get("/storms/{id}/track.geojson", s.handleStormTrack)
		r.Get("/stats/monthly-counts", s.handleMonthlyCounts)
		r.Get("/stats/ace", s.handleACE)
		r.Get("/stats/intensity", s.handleIntensity)
	})

	r.Handle("/files/*", http.StripPrefix("/files/", s.artifactServer()))
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

// handleReadyz reports ready once the catalogue answers queries and the data
// directory is readable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.store.Counts(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalogue unavailable")
		return
	}
	if _, err := os.Stat(s.cfg.DataDir); err != nil {
		writeError(w, http.StatusServiceUnavailable, "data directory unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// artifactServer serves the output directory read-only. Paths are cleaned
// and anything escaping the directory or naming a directory is refused.
func (s *Server) artifactServer() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithComponentFromContext(r.Context(), "api")
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		rel := filepath.Clean("/" + r.URL.Path)
		if strings.Contains(rel, "..") {
			logger.Warn().
				Str("event", "file_req.denied").
				Str("path", r.URL.Path).
				Msg("path escapes artifact directory")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		full := filepath.Join(s.cfg.OutputDir, rel)

		info, err := os.Stat(full)
		if err != nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		if info.IsDir() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		http.ServeFile(w, r, full)
	})
}
