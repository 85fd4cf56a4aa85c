package workspace

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// CaptureWatcher records which files an agent touches while a task runs.
// The executor starts one per task window; the touched set supplements the
// snapshot diff so short-lived writes inside the window are not missed.
type CaptureWatcher struct {
	ws      *Workspace
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu      sync.Mutex
	touched map[string]struct{}
}

// NewCaptureWatcher creates a watcher over the workspace root.
func NewCaptureWatcher(ws *Workspace, logger *slog.Logger) (*CaptureWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureWatcher{
		ws:      ws,
		watcher: fsw,
		logger:  logger,
		touched: make(map[string]struct{}),
	}, nil
}

// Start begins recording file events until the context is cancelled or
// Stop is called.
func (w *CaptureWatcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.ws.Root()); err != nil {
		return err
	}
	go w.processEvents(ctx)
	return nil
}

// Stop closes the underlying watcher.
func (w *CaptureWatcher) Stop() error {
	return w.watcher.Close()
}

// Touched returns the relative paths of files written during the watch
// window.
func (w *CaptureWatcher) Touched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.touched))
	for rel := range w.touched {
		out = append(out, rel)
	}
	return out
}

func (w *CaptureWatcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *CaptureWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)
		}
	}
}

func (w *CaptureWatcher) handleFSEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	rel, err := filepath.Rel(w.ws.Root(), event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	if w.ws.excluded(rel) {
		return
	}
	w.mu.Lock()
	w.touched[rel] = struct{}{}
	w.mu.Unlock()
}
