package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcherTriggersOnFileDrop(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	fired := make(chan struct{}, 8)
	w, err := New(dir, 20*time.Millisecond, time.Millisecond, func(context.Context) {
		fired <- struct{}{}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tracks.date"), []byte("data\n"), 0o644))

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("trigger never fired")
	}

	cancel()
	w.Stop()
}

func TestWatcherDebouncesBursts(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	var fires atomic.Int32
	w, err := New(dir, 100*time.Millisecond, time.Millisecond, func(context.Context) {
		fires.Add(1)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	// A burst of writes within the quiet period coalesces into one trigger.
	path := filepath.Join(dir, "tracks.date")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("data\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		return fires.Load() == 1
	}, 5*time.Second, 20*time.Millisecond)

	// Settle, then confirm no extra trigger arrives.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), fires.Load())

	cancel()
	w.Stop()
}

func TestWatcherStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New(t.TempDir(), 10*time.Millisecond, time.Millisecond, func(context.Context) {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()
	w.Stop()
}

func TestNewMissingDir(t *testing.T) {
	_, err := New("/does/not/exist", time.Second, time.Second, func(context.Context) {})
	assert.Error(t, err)
}
