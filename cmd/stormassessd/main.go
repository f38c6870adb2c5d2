// Command stormassessd runs the storm-assess daemon: it ingests TRACK files
// into the catalogue, watches the data directory for new drops, and serves
// the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulmach/orb"

	"github.com/leosaffin/storm-assess/internal/api"
	"github.com/leosaffin/storm-assess/internal/cache"
	"github.com/leosaffin/storm-assess/internal/catalog"
	"github.com/leosaffin/storm-assess/internal/config"
	"github.com/leosaffin/storm-assess/internal/jobs"
	"github.com/leosaffin/storm-assess/internal/log"
	"github.com/leosaffin/storm-assess/internal/regions"
	"github.com/leosaffin/storm-assess/internal/telemetry"
	"github.com/leosaffin/storm-assess/internal/watch"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("stormassessd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	log.Configure(log.Config{Service: "storm-assess", Version: version})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}
	log.SetLevel(cfg.LogLevel)
	logger.Info().
		Str("event", "config.loaded").
		Str("data_dir", cfg.DataDir).
		Str("listen", cfg.ListenAddr).
		Msg("configuration loaded")

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon exited with error")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := log.WithComponent("daemon")

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		SamplingRate:   1.0,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Str("event", "tracing.shutdown_failed").Msg("tracer shutdown failed")
		}
	}()

	store, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("open catalogue: %w", err)
	}
	defer func() { _ = store.Close() }()

	c, err := newCache(cfg)
	if err != nil {
		return err
	}

	outline, err := loadOutline(cfg)
	if err != nil {
		return err
	}
	classifier := regions.NewClassifier(outline, c, cfg.CacheTTL)

	runner := jobs.NewRunner(cfg, store)
	if cfg.IngestOnStart {
		if runID, err := runner.TryRun(ctx); err == nil {
			logger.Info().
				Str("event", "ingest.startup").
				Str("run_id", runID).
				Msg("initial ingest started")
		}
	}

	if cfg.WatchEnabled {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		watcher, err := watch.New(cfg.DataDir, cfg.WatchDebounce, cfg.WatchDebounce, func(ctx context.Context) {
			if _, err := runner.TryRun(ctx); err != nil && !errors.Is(err, jobs.ErrAlreadyRunning) {
				logger.Error().Err(err).Str("event", "ingest.trigger_failed").Msg("watch-triggered ingest failed to start")
			}
		})
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	server := api.NewServer(cfg, store, runner, c, classifier, version)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("event", "http.listening").
			Str("addr", cfg.ListenAddr).
			Msg("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Str("event", "daemon.shutdown").Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func newCache(cfg config.Config) (cache.Cache, error) {
	if cfg.CacheBackend == "redis" {
		c, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log.WithComponent("cache"))
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return c, nil
	}
	return cache.NewMemoryCache(5 * time.Minute), nil
}

func loadOutline(cfg config.Config) (orb.MultiPolygon, error) {
	if cfg.RegionsFile != "" {
		return regions.LoadOutlineFile(cfg.RegionsFile)
	}
	return regions.Europe()
}
