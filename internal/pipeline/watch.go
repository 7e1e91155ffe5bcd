package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/couchcryptid/postfire-sar-etl/internal/config"
	"github.com/couchcryptid/postfire-sar-etl/internal/observability"
	"github.com/couchcryptid/postfire-sar-etl/internal/safe"
	"github.com/couchcryptid/postfire-sar-etl/internal/sar"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// SceneFetcher pulls new scene archives from a remote catalog into the
// input directory and returns their local paths. A nil fetcher leaves the
// watcher in local-only mode.
type SceneFetcher interface {
	FetchScenes(ctx context.Context) ([]string, error)
}

// Watcher polls the input directory for SAFE archives and runs each new
// one through the scene processor. When a fetcher is configured, every
// scan first asks the catalog for fresh scenes. Archives that fail to
// process are logged and skipped rather than retried forever; transient
// scan and fetch failures back off exponentially.
type Watcher struct {
	processor *SceneProcessor
	fetcher   SceneFetcher
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics

	ready atomic.Bool
	seen  map[string]bool
}

// NewWatcher wires a watcher. fetcher may be nil.
func NewWatcher(processor *SceneProcessor, fetcher SceneFetcher, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Watcher {
	return &Watcher{
		processor: processor,
		fetcher:   fetcher,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		seen:      make(map[string]bool),
	}
}

// Run executes the watch loop until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher started",
		"input_dir", w.cfg.InputDir, "output_dir", w.cfg.OutputDir,
		"polarizations", w.cfg.Polarizations, "poll_interval", w.cfg.PollInterval)
	w.metrics.WatcherRunning.Set(1)
	defer w.metrics.WatcherRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !w.scanOnce(ctx, &backoff) {
			w.logger.Info("watcher stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// CheckReadiness reports nil once at least one scene band has been
// handled, which proves the input, output, and processing paths all work.
func (w *Watcher) CheckReadiness(_ context.Context) error {
	if !w.ready.Load() {
		return errors.New("no scene has been processed yet")
	}
	return nil
}

// scanOnce performs one fetch-scan-process cycle. Returns false when the
// watcher should stop.
func (w *Watcher) scanOnce(ctx context.Context, backoff *time.Duration) bool {
	if w.fetcher != nil {
		downloaded, err := w.fetcher.FetchScenes(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			w.logger.Error("catalog fetch failed", "error", err)
			return w.backoffOrStop(ctx, backoff)
		}
		if len(downloaded) > 0 {
			w.logger.Info("catalog fetch complete", "archives", len(downloaded))
		}
	}

	archives, err := w.listArchives()
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.logger.Error("scan input directory failed", "dir", w.cfg.InputDir, "error", err)
		return w.backoffOrStop(ctx, backoff)
	}
	*backoff = initialBackoff

	for _, path := range archives {
		if ctx.Err() != nil {
			return false
		}
		if w.seen[path] {
			continue
		}
		if w.processArchive(ctx, path) > 0 {
			w.ready.Store(true)
		}
		w.seen[path] = true
	}

	return w.sleepWithContext(ctx, w.cfg.PollInterval)
}

// processArchive runs every configured polarization of one archive and
// returns how many bands were handled, counting bands whose outputs
// already exist. Failed bands are logged and skipped so one poison
// archive cannot wedge the loop.
func (w *Watcher) processArchive(ctx context.Context, path string) int {
	runID := uuid.NewString()
	scene := safe.SceneName(path)
	logger := w.logger.With("run_id", runID, "archive", filepath.Base(path))
	logger.Info("processing archive", "scene", scene)

	handled := 0
	for _, pol := range w.cfg.Polarizations {
		if ctx.Err() != nil {
			return handled
		}

		outPath := w.processor.OutputPath(scene, pol)
		if !w.cfg.Overwrite {
			if _, err := os.Stat(outPath); err == nil {
				logger.Debug("output exists, skipping band", "polarization", pol, "path", outPath)
				handled++
				continue
			}
		}

		_, err := w.processor.Process(ctx, ProcessRequest{Archive: path, Polarization: pol, RunID: runID})
		switch {
		case err == nil:
			handled++
		case errors.Is(err, sar.ErrBandNotFound):
			logger.Warn("band not present in archive", "polarization", pol)
		case ctx.Err() != nil:
			return handled
		default:
			logger.Error("scene band processing failed", "polarization", pol, "error", err)
		}
	}
	return handled
}

func (w *Watcher) listArchives() ([]string, error) {
	entries, err := os.ReadDir(w.cfg.InputDir)
	if err != nil {
		return nil, err
	}
	var archives []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".zip") {
			continue
		}
		archives = append(archives, filepath.Join(w.cfg.InputDir, e.Name()))
	}
	sort.Strings(archives)
	return archives, nil
}

// backoffOrStop sleeps for the current backoff, doubling it for next
// time. Returns false when the context was cancelled during the sleep.
func (w *Watcher) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if !w.sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff)
	return true
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// sleepWithContext waits for d or until the context is cancelled.
// Returns false on cancellation.
func (w *Watcher) sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
