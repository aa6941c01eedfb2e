package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"uaspace/internal/addrspace"
	"uaspace/internal/logger"
)

// Watcher applies model files that are created or rewritten in a
// directory. Bursts of events are debounced per file.
type Watcher struct {
	dir       string
	space     *addrspace.Space
	fsWatcher *fsnotify.Watcher

	debounceDelay time.Duration
	pendingFiles  map[string]struct{}
	pendingMu     sync.Mutex
	debounceTimer *time.Timer

	onApplied func(path string, stats Stats)
	onError   func(error)

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithOnApplied sets the callback run after a file was applied.
func WithOnApplied(fn func(path string, stats Stats)) WatcherOption {
	return func(w *Watcher) {
		w.onApplied = fn
	}
}

// WithOnError sets the callback for errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// NewWatcher watches dir for model files to apply to s.
func NewWatcher(dir string, s *addrspace.Space, opts ...WatcherOption) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat model directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		dir:           dir,
		space:         s,
		fsWatcher:     fsWatcher,
		debounceDelay: 250 * time.Millisecond,
		pendingFiles:  make(map[string]struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// ApplyExisting applies the model files already present in the directory
// in name order.
func (w *Watcher) ApplyExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read model directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		if err := w.apply(filepath.Join(w.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Start begins watching for changes.
func (w *Watcher) Start() {
	go w.eventLoop()
}

// Stop stops the watcher. Pending files are dropped.
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

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !Supported(event.Name) {
		return
	}
	// Removal never deletes nodes; only new or rewritten files count
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pendingFiles[event.Name] = struct{}{}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.flush)
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	files := make([]string, 0, len(w.pendingFiles))
	for f := range w.pendingFiles {
		files = append(files, f)
	}
	w.pendingFiles = make(map[string]struct{})
	w.pendingMu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	sort.Strings(files)
	for _, f := range files {
		if err := w.apply(f); err != nil {
			w.reportError(err)
		}
	}
}

func (w *Watcher) apply(path string) error {
	stats, err := ApplyFile(w.space, path)
	if err != nil {
		return err
	}
	logger.Info(logScope, "applied %s", filepath.Base(path))
	if w.onApplied != nil {
		w.onApplied(path, stats)
	}
	return nil
}

func (w *Watcher) reportError(err error) {
	logger.Warn(logScope, "watcher: %v", err)
	if w.onError != nil {
		w.onError(err)
	}
}
