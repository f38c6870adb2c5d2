// Package jobs runs catalogue ingests: discover track files, parse them on a
// bounded worker pool, persist storms, and publish artifacts.
package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leosaffin/storm-assess/internal/assess"
	"github.com/leosaffin/storm-assess/internal/catalog"
	"github.com/leosaffin/storm-assess/internal/config"
	"github.com/leosaffin/storm-assess/internal/export"
	"github.com/leosaffin/storm-assess/internal/log"
	"github.com/leosaffin/storm-assess/internal/metrics"
	"github.com/leosaffin/storm-assess/internal/storm"
	"github.com/leosaffin/storm-assess/internal/track"
)

// ErrAlreadyRunning is returned by TryRun while an ingest is in flight.
var ErrAlreadyRunning = errors.New("ingest already running")

// Status summarises the most recent ingest run.
type Status struct {
	RunID   string    `json:"run_id,omitempty"`
	LastRun time.Time `json:"last_run,omitempty"`
	Files   int       `json:"files"`
	Storms  int       `json:"storms"`
	Skipped int       `json:"skipped"`
	Error   string    `json:"error,omitempty"`
}

// Runner executes ingests one at a time against a catalogue.
type Runner struct {
	cfg   config.Config
	store *catalog.Store

	running atomic.Bool
	mu      sync.Mutex
	last    Status
}

// NewRunner builds an ingest runner.
func NewRunner(cfg config.Config, store *catalog.Store) *Runner {
	return &Runner{cfg: cfg, store: store}
}

// Status returns the last run's summary.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Running reports whether an ingest is in flight.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// TryRun starts an ingest in the background unless one is already running,
// returning its run ID.
func (r *Runner) TryRun(ctx context.Context) (string, error) {
	if !r.running.CompareAndSwap(false, true) {
		return "", ErrAlreadyRunning
	}
	runID := uuid.NewString()
	go func() {
		defer r.running.Store(false)
		r.run(log.ContextWithRunID(ctx, runID), runID)
	}()
	return runID, nil
}

// Run executes one ingest synchronously.
func (r *Runner) Run(ctx context.Context) (Status, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Status{}, ErrAlreadyRunning
	}
	defer r.running.Store(false)
	runID := uuid.NewString()
	return r.run(log.ContextWithRunID(ctx, runID), runID)
}

type fileResult struct {
	path    string
	format  string
	storms  int
	skipped bool
	err     error
}

func (r *Runner) run(ctx context.Context, runID string) (Status, error) {
	logger := log.WithComponentFromContext(ctx, "ingest")
	started := time.Now()

	status := Status{RunID: runID, LastRun: started}
	files, err := r.discover()
	if err == nil {
		results := r.processFiles(ctx, files)
		var errs []string
		for _, res := range results {
			switch {
			case res.err != nil:
				errs = append(errs, fmt.Sprintf("%s: %v", res.path, res.err))
			case res.skipped:
				status.Skipped++
			default:
				status.Files++
				status.Storms += res.storms
			}
		}
		if len(errs) > 0 {
			err = errors.New(strings.Join(errs, "; "))
		}
	}
	if err == nil {
		err = r.writeArtifacts(ctx, runID)
	}

	metrics.IngestDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		status.Error = err.Error()
		metrics.IngestRuns.WithLabelValues("error").Inc()
		logger.Error().
			Str("event", "ingest.failed").
			Err(err).
			Msg("ingest run failed")
	} else {
		metrics.IngestRuns.WithLabelValues("ok").Inc()
		logger.Info().
			Str("event", "ingest.complete").
			Int("files", status.Files).
			Int("storms", status.Storms).
			Int("skipped", status.Skipped).
			Dur("duration", time.Since(started)).
			Msg("ingest run complete")
	}

	r.mu.Lock()
	r.last = status
	r.mu.Unlock()
	return status, err
}

type discoveredFile struct {
	path   string
	format string
}

// discover lists track files per configured glob, sorted for stable runs.
func (r *Runner) discover() ([]discoveredFile, error) {
	var files []discoveredFile
	for format, glob := range r.cfg.Globs {
		matches, err := filepath.Glob(filepath.Join(r.cfg.DataDir, glob))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", glob, err)
		}
		for _, m := range matches {
			files = append(files, discoveredFile{path: m, format: format})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

func (r *Runner) processFiles(ctx context.Context, files []discoveredFile) []fileResult {
	results := make([]fileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, f := range files {
		g.Go(func() error {
			results[i] = r.processFile(ctx, f)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) processFile(ctx context.Context, f discoveredFile) fileResult {
	logger := log.WithComponentFromContext(ctx, "ingest")
	res := fileResult{path: f.path, format: f.format}

	sum, modTime, err := hashFile(f.path)
	if err != nil {
		res.err = err
		metrics.FilesParsed.WithLabelValues(f.format, "error").Inc()
		return res
	}

	prev, err := r.store.GetFile(ctx, f.path)
	if err != nil {
		res.err = err
		metrics.FilesParsed.WithLabelValues(f.format, "error").Inc()
		return res
	}
	if prev != nil && prev.SHA256 == sum {
		res.skipped = true
		metrics.FilesParsed.WithLabelValues(f.format, "skipped").Inc()
		logger.Debug().
			Str("event", "ingest.skip").
			Str("path", f.path).
			Msg("file unchanged, skipping")
		return res
	}

	format, _ := track.ParseFormat(f.format)
	storms, err := track.LoadFile(f.path, track.Options{
		Format:       format,
		Calendar:     r.cfg.TrackCalendar(),
		ExtraColumns: r.cfg.ExtraColumns,
	})
	if err != nil {
		res.err = err
		metrics.FilesParsed.WithLabelValues(f.format, "error").Inc()
		return res
	}

	ids, err := r.store.InsertStorms(ctx, f.path, storms)
	if err != nil {
		res.err = err
		metrics.FilesParsed.WithLabelValues(f.format, "error").Inc()
		return res
	}
	if err := r.store.UpsertFile(ctx, catalog.FileInfo{
		Path:       f.path,
		SHA256:     sum,
		ModTime:    modTime,
		Storms:     len(ids),
		IngestedAt: time.Now(),
	}); err != nil {
		res.err = err
		metrics.FilesParsed.WithLabelValues(f.format, "error").Inc()
		return res
	}

	res.storms = len(ids)
	metrics.FilesParsed.WithLabelValues(f.format, "ok").Inc()
	metrics.StormsIngested.Add(float64(len(ids)))
	logger.Info().
		Str("event", "ingest.file").
		Str("path", f.path).
		Str("format", f.format).
		Int("storms", len(ids)).
		Msg("track file ingested")
	return res
}

func hashFile(path string) (string, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", time.Time{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", time.Time{}, err
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", time.Time{}, err
	}
	return hex.EncodeToString(h.Sum(nil)), info.ModTime(), nil
}

// runStats is the shape of the stats.json artifact.
type runStats struct {
	RunID       string                `json:"run_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Files       int                   `json:"files"`
	Storms      int                   `json:"storms"`
	Intensity   assess.IntensityStats `json:"intensity"`
}

// writeArtifacts rebuilds tracks.geojson, storms.csv and stats.json from the
// full catalogue so artifacts also cover files skipped this run.
func (r *Runner) writeArtifacts(ctx context.Context, runID string) error {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	records, err := r.store.ListStorms(ctx, catalog.Filter{})
	if err != nil {
		return fmt.Errorf("list storms: %w", err)
	}
	storms := make([]storm.Storm, 0, len(records))
	for _, rec := range records {
		_, st, err := r.store.GetStorm(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("load storm %s: %w", rec.ID, err)
		}
		storms = append(storms, *st)
	}

	if err := export.WriteTracksGeoJSONFile(filepath.Join(r.cfg.OutputDir, "tracks.geojson"), storms, export.Options{}); err != nil {
		return err
	}
	if err := export.SummaryCSVFile(filepath.Join(r.cfg.OutputDir, "storms.csv"), storms); err != nil {
		return err
	}

	files, total, err := r.store.Counts(ctx)
	if err != nil {
		return fmt.Errorf("catalogue counts: %w", err)
	}
	stats := runStats{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Files:       files,
		Storms:      total,
		Intensity:   assess.IntensityDistribution(storms),
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	statsPath := filepath.Join(r.cfg.OutputDir, "stats.json")
	if err := renameio.WriteFile(statsPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", statsPath, err)
	}
	return nil
}
