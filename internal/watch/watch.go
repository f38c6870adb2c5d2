// Package watch triggers catalogue ingests when track files land in the
// data directory.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/leosaffin/storm-assess/internal/log"
)

// Trigger is called after file activity settles.
type Trigger func(ctx context.Context)

// Watcher debounces fsnotify events on one directory into Trigger calls. A
// rate limiter caps trigger frequency so a long stream of file drops cannot
// starve the system with back-to-back ingests.
type Watcher struct {
	dir      string
	debounce time.Duration
	limiter  *rate.Limiter
	trigger  Trigger

	watcher *fsnotify.Watcher
	logger  zerolog.Logger
	done    chan struct{}
}

// New builds a watcher over dir. debounce is the quiet period after the last
// event before trigger fires; minInterval is the floor between consecutive
// triggers.
func New(dir string, debounce, minInterval time.Duration, trigger Trigger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
		trigger:  trigger,
		watcher:  fsw,
		logger:   log.WithComponent("watch"),
		done:     make(chan struct{}),
	}, nil
}

// Start runs the event loop until ctx is cancelled or the watcher is
// stopped.
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info().
		Str("event", "watch.started").
		Str("dir", w.dir).
		Msg("watching data directory")
	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str("event", "watch.stopped").Msg("watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug().
				Str("event", "watch.file_changed").
				Str("path", event.Name).
				Str("op", event.Op.String()).
				Msg("data directory changed")

			// Debounce: reset the quiet-period timer on each event.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				w.fire(ctx)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().
				Err(err).
				Str("event", "watch.error").
				Msg("watcher error")
		}
	}
}

func (w *Watcher) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !w.limiter.Allow() {
		w.logger.Debug().
			Str("event", "watch.throttled").
			Msg("trigger suppressed by rate limit")
		return
	}
	w.trigger(ctx)
}

// Stop closes the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	_ = w.watcher.Close()
	<-w.done
}
