package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/postfire-sar-etl/internal/config"
	"github.com/couchcryptid/postfire-sar-etl/internal/pipeline"
)

// --- mocks ---

type mockFetcher struct {
	calls   atomic.Int32
	err     error
	deliver func() []string
}

func (f *mockFetcher) FetchScenes(_ context.Context) ([]string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.deliver != nil {
		return f.deliver(), nil
	}
	return nil, nil
}

// --- helpers ---

func newWatchConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := newSceneConfig(t)
	cfg.PollInterval = 20 * time.Millisecond
	return cfg
}

// runWatcher starts the watch loop and returns a stop function that
// cancels it and waits for a clean exit.
func runWatcher(t *testing.T, w *pipeline.Watcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

// --- tests ---

func TestWatcher_Run_ProcessesNewArchives(t *testing.T) {
	cfg := newWatchConfig(t)
	cfg.Polarizations = []string{"VV", "VH"}
	writeSceneArchive(t, cfg.InputDir, "VV", "VH")

	pub := &capturingPublisher{}
	metrics := newTestMetrics()
	p := pipeline.NewSceneProcessor(cfg, pub, slog.Default(), metrics)
	w := pipeline.NewWatcher(p, nil, cfg, slog.Default(), metrics)

	stop := runWatcher(t, w)

	vvOut := p.OutputPath(testScene, "VV")
	vhOut := p.OutputPath(testScene, "VH")
	require.Eventually(t, func() bool {
		_, errVV := os.Stat(vvOut)
		_, errVH := os.Stat(vhOut)
		return errVV == nil && errVH == nil && w.CheckReadiness(context.Background()) == nil
	}, 3*time.Second, 10*time.Millisecond)

	stop()

	recs := pub.records()
	require.Len(t, recs, 2)
	assert.Equal(t, "VV", recs[0].Polarization)
	assert.Equal(t, "VH", recs[1].Polarization)
	assert.NotEmpty(t, recs[0].RunID)
	assert.Equal(t, recs[0].RunID, recs[1].RunID)
}

func TestWatcher_CheckReadiness_NotReadyInitially(t *testing.T) {
	cfg := newWatchConfig(t)
	p := pipeline.NewSceneProcessor(cfg, nil, slog.Default(), newTestMetrics())
	w := pipeline.NewWatcher(p, nil, cfg, slog.Default(), newTestMetrics())

	err := w.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scene has been processed yet")
}

func TestWatcher_Run_ExistingOutputCountsAsHandled(t *testing.T) {
	cfg := newWatchConfig(t)
	// The archive is not even a zip; with the output already on disk the
	// band is skipped before extraction is attempted.
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputDir, testScene+".zip"), []byte("junk"), 0o644))

	p := pipeline.NewSceneProcessor(cfg, nil, slog.Default(), newTestMetrics())
	out := p.OutputPath(testScene, "VV")
	require.NoError(t, os.WriteFile(out, []byte("sentinel"), 0o644))

	w := pipeline.NewWatcher(p, nil, cfg, slog.Default(), newTestMetrics())
	stop := runWatcher(t, w)

	require.Eventually(t, func() bool {
		return w.CheckReadiness(context.Background()) == nil
	}, 3*time.Second, 10*time.Millisecond)

	stop()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "sentinel", string(data))
}

func TestWatcher_Run_FetchedArchivesAreProcessed(t *testing.T) {
	cfg := newWatchConfig(t)
	staged := writeSceneArchive(t, t.TempDir(), "VV")
	dest := filepath.Join(cfg.InputDir, filepath.Base(staged))

	fetcher := &mockFetcher{deliver: func() []string {
		if err := os.Rename(staged, dest); err != nil {
			return nil // delivered on an earlier poll
		}
		return []string{dest}
	}}

	pub := &capturingPublisher{}
	metrics := newTestMetrics()
	p := pipeline.NewSceneProcessor(cfg, pub, slog.Default(), metrics)
	w := pipeline.NewWatcher(p, fetcher, cfg, slog.Default(), metrics)

	stop := runWatcher(t, w)

	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 2 && w.CheckReadiness(context.Background()) == nil
	}, 3*time.Second, 10*time.Millisecond)

	stop()

	require.Len(t, pub.records(), 1)
	assert.Equal(t, testScene, pub.records()[0].Scene)
}

func TestWatcher_Run_FetchErrorKeepsPolling(t *testing.T) {
	cfg := newWatchConfig(t)
	writeSceneArchive(t, cfg.InputDir, "VV")
	fetcher := &mockFetcher{err: errors.New("catalog offline")}

	p := pipeline.NewSceneProcessor(cfg, nil, slog.Default(), newTestMetrics())
	w := pipeline.NewWatcher(p, fetcher, cfg, slog.Default(), newTestMetrics())

	stop := runWatcher(t, w)

	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond)

	stop()

	// A failing fetch skips the directory scan, so nothing was processed.
	require.Error(t, w.CheckReadiness(context.Background()))
	_, err := os.Stat(p.OutputPath(testScene, "VV"))
	assert.True(t, os.IsNotExist(err))
}

func TestWatcher_Run_PoisonArchiveIsSkipped(t *testing.T) {
	cfg := newWatchConfig(t)
	// Sorts ahead of the good archive, so the loop hits it first.
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputDir, "A_0_poison.zip"), []byte("junk"), 0o644))
	writeSceneArchive(t, cfg.InputDir, "VV")

	pub := &capturingPublisher{}
	metrics := newTestMetrics()
	p := pipeline.NewSceneProcessor(cfg, pub, slog.Default(), metrics)
	w := pipeline.NewWatcher(p, nil, cfg, slog.Default(), metrics)

	stop := runWatcher(t, w)

	require.Eventually(t, func() bool {
		return w.CheckReadiness(context.Background()) == nil
	}, 3*time.Second, 10*time.Millisecond)

	stop()

	recs := pub.records()
	require.Len(t, recs, 1)
	assert.Equal(t, testScene, recs[0].Scene)
	_, err := os.Stat(p.OutputPath("A_0_poison", "VV"))
	assert.True(t, os.IsNotExist(err))
}

func TestWatcher_Run_StopsOnCancelledContext(t *testing.T) {
	cfg := newWatchConfig(t)
	p := pipeline.NewSceneProcessor(cfg, nil, slog.Default(), newTestMetrics())
	w := pipeline.NewWatcher(p, nil, cfg, slog.Default(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, w.Run(ctx))
}
