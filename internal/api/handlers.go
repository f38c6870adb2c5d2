package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/leosaffin/storm-assess/internal/assess"
	"github.com/leosaffin/storm-assess/internal/catalog"
	"github.com/leosaffin/storm-assess/internal/config"
	"github.com/leosaffin/storm-assess/internal/export"
	"github.com/leosaffin/storm-assess/internal/jobs"
	"github.com/leosaffin/storm-assess/internal/log"
	"github.com/leosaffin/storm-assess/internal/storm"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusResponse struct {
	Running bool        `json:"running"`
	Last    jobs.Status `json:"last"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Running: s.runner.Running(),
		Last:    s.runner.Status(),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// The ingest outlives this request; detach it from the request context.
	runID, err := s.runner.TryRun(context.WithoutCancel(r.Context()))
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		writeError(w, http.StatusConflict, "ingest already running")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str("event", "ingest.triggered").
		Str("run_id", runID).
		Msg("ingest triggered via API")
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// queryStorms loads the catalogued storms matching the request filters,
// including their observations. The basin filter is answered through the
// memoising classifier.
func (s *Server) queryStorms(ctx context.Context, year int, months []int, basin string) ([]catalog.Record, []storm.Storm, error) {
	records, err := s.store.ListStorms(ctx, catalog.Filter{Year: year, Months: months})
	if err != nil {
		return nil, nil, err
	}
	var outRecords []catalog.Record
	var outStorms []storm.Storm
	for _, rec := range records {
		_, st, err := s.store.GetStorm(ctx, rec.ID)
		if err != nil {
			return nil, nil, err
		}
		if basin != "" {
			in, err := s.classifier.StormInBasin(rec.ID, st, basin)
			if err != nil {
				return nil, nil, errBadBasin{err}
			}
			if !in {
				continue
			}
		}
		outRecords = append(outRecords, rec)
		outStorms = append(outStorms, *st)
	}
	return outRecords, outStorms, nil
}

type errBadBasin struct{ err error }

func (e errBadBasin) Error() string { return e.err.Error() }

func (s *Server) handleListStorms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var year int
	if raw := q.Get("year"); raw != "" {
		var err error
		if year, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid year %q", raw))
			return
		}
	}
	months, err := config.ParseMonths(q.Get("months"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, storms, err := s.queryStorms(r.Context(), year, months, q.Get("basin"))
	if err != nil {
		var bad errBadBasin
		if errors.As(err, &bad) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch q.Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, map[string]any{
			"count":  len(records),
			"storms": records,
		})
	case "geojson":
		w.Header().Set("Content-Type", "application/geo+json")
		if err := export.WriteTracksGeoJSON(w, storms, export.Options{}); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		if err := export.SummaryCSV(w, storms); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q (want json, geojson or csv)", q.Get("format")))
	}
}

type stormResponse struct {
	catalog.Record
	Obs []storm.Observation `json:"obs"`
}

func (s *Server) handleGetStorm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, st, err := s.store.GetStorm(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "storm not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stormResponse{Record: rec, Obs: st.Obs})
}

func (s *Server) handleStormTrack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, st, err := s.store.GetStorm(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "storm not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := export.WriteTracksGeoJSON(w, []storm.Storm{*st}, export.Options{}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseYears accepts "2000,2001" and ranges "2000-2005".
func parseYears(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []int
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Count(p, "-") == 1 && !strings.HasPrefix(p, "-") {
			ab := strings.Split(p, "-")
			a, err := strconv.Atoi(strings.TrimSpace(ab[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid year range start %q", ab[0])
			}
			b, err := strconv.Atoi(strings.TrimSpace(ab[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid year range end %q", ab[1])
			}
			if a > b {
				return nil, fmt.Errorf("invalid year range %q: start > end", p)
			}
			for y := a; y <= b; y++ {
				out = append(out, y)
			}
			continue
		}
		y, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", p)
		}
		out = append(out, y)
	}
	return out, nil
}

// allStorms loads every catalogued storm with observations.
func (s *Server) allStorms(ctx context.Context) ([]storm.Storm, error) {
	_, storms, err := s.queryStorms(ctx, 0, nil, "")
	return storms, err
}

func (s *Server) handleMonthlyCounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	years, err := parseYears(q.Get("years"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(years) == 0 {
		writeError(w, http.StatusBadRequest, "years parameter required")
		return
	}
	months, err := config.ParseMonths(q.Get("months"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(months) == 0 {
		months = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	}
	basin := q.Get("basin")
	if basin == "" {
		writeError(w, http.StatusBadRequest, "basin parameter required")
		return
	}

	storms, err := s.allStorms(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts, err := assess.MonthlyStormCounts(storms, years, months, basin)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"years":  years,
		"months": months,
		"basin":  basin,
		"counts": counts,
	})
}

func (s *Server) handleACE(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year parameter required")
		return
	}
	months, err := config.ParseMonths(q.Get("months"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(months) == 0 {
		months = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	}
	basin := q.Get("basin")
	if basin == "" {
		writeError(w, http.StatusBadRequest, "basin parameter required")
		return
	}

	storms, err := s.allStorms(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ace, err := assess.SeasonACE(storms, year, months, basin, s.cfg.TrackCalendar())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":   year,
		"months": months,
		"basin":  basin,
		"ace":    ace,
	})
}

const intensityCacheKey = "stats:intensity"

func (s *Server) handleIntensity(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		if v, ok := s.cache.Get(intensityCacheKey); ok {
			if stats, ok := v.(assess.IntensityStats); ok {
				writeJSON(w, http.StatusOK, stats)
				return
			}
		}
	}

	storms, err := s.allStorms(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats := assess.IntensityDistribution(storms)
	if s.cache != nil {
		s.cache.Set(intensityCacheKey, stats, s.cfg.CacheTTL)
	}
	writeJSON(w, http.StatusOK, stats)
}
