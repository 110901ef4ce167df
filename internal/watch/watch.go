// Package watch re-syncs the mirrors whenever the canonical file changes.
//
// The watcher monitors the prompts directory rather than the file itself:
// most editors replace files on save (write to temp, rename over), which
// would silently drop a watch on the file's inode. Rapid successive saves
// are debounced so one editing session produces one sync run.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/vibesync/vibesync/internal/config"
	"github.com/vibesync/vibesync/internal/store"
	"github.com/vibesync/vibesync/internal/syncer"
)

// Watcher owns the fsnotify loop.
type Watcher struct {
	mu       sync.Mutex
	cfg      config.Config
	root     string
	watcher  *fsnotify.Watcher
	log      hclog.Logger
	debounce time.Duration
	pending  map[string]time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool

	// syncFn and recordFn are seams for tests.
	syncFn   func() (*syncer.Result, error)
	recordFn func(*syncer.Result)
}

// New creates a Watcher for the repository at root. st may be nil when
// history should not be recorded.
func New(cfg config.Config, root string, sy *syncer.Syncer, st *store.Store, logger hclog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	w := &Watcher{
		cfg:      cfg,
		root:     root,
		watcher:  fsw,
		log:      logger,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	w.syncFn = func() (*syncer.Result, error) { return sy.Sync("") }
	w.recordFn = func(result *syncer.Result) {
		if st == nil {
			return
		}
		run := store.Run{
			ID:        result.RunID,
			Source:    result.Source,
			Checksum:  result.Checksum,
			Trigger:   "watch",
			SyncedBy:  result.SyncedBy,
			StartedAt: result.SyncedAt,
			Copied:    result.Copied(),
			Unchanged: result.Unchanged(),
			Failed:    result.Failed(),
		}
		outcomes := make([]store.TargetOutcome, 0, len(result.Targets))
		for _, tr := range result.Targets {
			outcomes = append(outcomes, store.TargetOutcome{
				RunID:  result.RunID,
				Target: tr.Target,
				Path:   tr.Path,
				State:  string(tr.State),
				Error:  tr.Err,
			})
		}
		if err := st.RecordRun(run, outcomes); err != nil {
			logger.Warn("failed to record watch run", "run_id", result.RunID, "error", err)
		}
	}

	return w, nil
}

// Start begins watching. Non-blocking; the loop runs until Stop or ctx
// cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Join(w.root, filepath.Dir(w.cfg.Source))
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.log.Info("watching for changes", "dir", dir, "source", w.cfg.Source)

	go w.run(ctx)
	return nil
}

// Stop shuts the loop down and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.log.Error("error closing watcher", "error", err)
	}
	w.log.Info("watcher stopped")
}

// Running reports whether the loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watch error", "error", err)

		case <-ticker.C:
			w.processSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.isCanonical(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.log.Debug("canonical file changed", "op", event.Op.String(), "path", event.Name)

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processSettled() {
	w.mu.Lock()
	now := time.Now()
	due := false
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			delete(w.pending, path)
			due = true
		}
	}
	w.mu.Unlock()

	if !due {
		return
	}

	result, err := w.syncFn()
	if err != nil {
		w.log.Error("sync after change failed", "error", err)
		return
	}

	w.log.Info("synced after change",
		"run_id", result.RunID,
		"copied", result.Copied(),
		"unchanged", result.Unchanged(),
		"failed", result.Failed(),
	)
	w.recordFn(result)
}

// isCanonical matches events against the configured source file.
func (w *Watcher) isCanonical(path string) bool {
	want := filepath.Clean(filepath.Join(w.root, w.cfg.Source))
	got := filepath.Clean(path)
	if got == want {
		return true
	}
	// Some editors emit events for the temp file then rename; compare the
	// base name as a fallback.
	return filepath.Base(got) == filepath.Base(want)
}
