package manager

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fileWatcher reloads the protocol file after edits settle. It watches the
// parent directory because editors commonly replace the file by rename,
// which would drop a watch placed on the file itself.
type fileWatcher struct {
	path     string
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	debounce *Debouncer

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newFileWatcher(path string, interval time.Duration, logger *slog.Logger) (*fileWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to watch directory %q: %w", dir, err)
	}
	return &fileWatcher{
		path:     filepath.Clean(path),
		fs:       fs,
		logger:   logger,
		debounce: NewDebouncer(interval),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// run dispatches events until ctx is cancelled or close is called. Reload
// errors are logged; the manager keeps serving the last good config.
func (w *fileWatcher) run(ctx context.Context, reload func() error) {
	defer close(w.done)
	w.logger.Info("Watching protocol file", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) || filepath.Clean(event.Name) != w.path {
				continue
			}
			w.logger.Debug("Protocol file changed", "op", event.Op.String())
			w.debounce.Trigger(func() {
				if err := reload(); err != nil {
					w.logger.Error("Protocol reload failed", "path", w.path, "error", err)
				}
			})
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Protocol watcher error", "error", err)
		}
	}
}

// close stops run, drops any pending reload and releases the fsnotify handle.
func (w *fileWatcher) close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
		w.debounce.Stop()
		err = w.fs.Close()
	})
	return err
}

// Debouncer collects rapid events and runs the latest callback after a
// quiet period.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopped  bool
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.callback = nil
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
