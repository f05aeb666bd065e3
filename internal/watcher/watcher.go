// Package watcher triggers project rescans when source files change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felipestanzani/beyondsight/internal/analyzer"
	bserrors "github.com/felipestanzani/beyondsight/internal/errors"
	"github.com/felipestanzani/beyondsight/internal/indexer"
)

// Rescanner starts a project rebuild. *indexer.Indexer implements it.
type Rescanner interface {
	Rescan(ctx context.Context, path string) (indexer.Status, error)
}

// sourceExtensions are the file types whose changes trigger a rescan.
var sourceExtensions = []string{".go", ".java"}

// Watcher watches for file changes and triggers a rescan
type Watcher struct {
	projectPath string
	rescanner   Rescanner
	fsWatcher   *fsnotify.Watcher
	logger      *slog.Logger

	// Debouncing
	debounceDelay time.Duration
	pendingFiles  map[string]struct{}
	pendingMu     sync.Mutex
	debounceTimer *time.Timer

	// Callbacks
	onTrigger func(files []string, status indexer.Status)
	onError   func(error)

	// Control
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures the watcher
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithOnTrigger sets the callback for when a rescan has been started
func WithOnTrigger(fn func(files []string, status indexer.Status)) WatcherOption {
	return func(w *Watcher) {
		w.onTrigger = fn
	}
}

// WithOnError sets the callback for errors
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a new Watcher
func New(projectPath string, rescanner Rescanner, opts ...WatcherOption) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		projectPath:   projectPath,
		rescanner:     rescanner,
		fsWatcher:     fsWatcher,
		logger:        slog.Default(),
		debounceDelay: 500 * time.Millisecond,
		pendingFiles:  make(map[string]struct{}),
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if err := w.addDirs(projectPath); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to add directories to watch: %w", err)
	}

	return w, nil
}

// addDirs recursively adds all source directories under root
func (w *Watcher) addDirs(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && analyzer.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Start begins watching for changes
func (w *Watcher) Start() {
	go w.eventLoop()
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.pendingMu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.pendingMu.Unlock()
		err = w.fsWatcher.Close()
	})
	return err
}

// eventLoop handles file system events
func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

// handleEvent processes a single file system event
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories must be watched before their files change
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !analyzer.SkipDir(filepath.Base(event.Name)) {
				if err := w.addDirs(event.Name); err != nil {
					w.reportError(err)
				}
			}
			return
		}
	}

	if !isSourceFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.pendingFiles[event.Name] = struct{}{}
	w.armLocked()
}

// armLocked resets the debounce timer. pendingMu must be held.
func (w *Watcher) armLocked() {
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.triggerRescan)
}

func isSourceFile(name string) bool {
	if strings.HasSuffix(name, "_test.go") {
		return false
	}
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// triggerRescan starts a rescan after debounce. A rescan refused because
// one is already running keeps the pending files and re-arms the timer.
func (w *Watcher) triggerRescan() {
	select {
	case <-w.done:
		return
	default:
	}

	w.pendingMu.Lock()
	files := make([]string, 0, len(w.pendingFiles))
	for f := range w.pendingFiles {
		files = append(files, f)
	}
	w.pendingFiles = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(files) == 0 {
		return
	}
	sort.Strings(files)

	status, err := w.rescanner.Rescan(context.Background(), w.projectPath)
	if bserrors.HasCode(err, bserrors.Conflict) {
		w.logger.Debug("rescan already running, retrying later", "files", len(files))
		w.pendingMu.Lock()
		for _, f := range files {
			w.pendingFiles[f] = struct{}{}
		}
		w.armLocked()
		w.pendingMu.Unlock()
		return
	}
	if err != nil {
		w.reportError(fmt.Errorf("rescan failed: %w", err))
		return
	}

	w.logger.Info("source change detected, rescan started", "files", len(files), "run_id", status.RunID)
	if w.onTrigger != nil {
		w.onTrigger(files, status)
	}
}

func (w *Watcher) reportError(err error) {
	w.logger.Warn("watcher error", "err", err)
	if w.onError != nil {
		w.onError(err)
	}
}
