// Package watcher triggers rebuilds when the sources of a build change.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/embroider-build/embroider-sub001/internal/logger"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// skipDirs are never watched wherever they appear.
var skipDirs = map[string]bool{"node_modules": true, ".git": true}

type Options struct {
	Roots []string
	// Exclude are absolute paths that are not watched, such as the
	// workspace the build writes into.
	Exclude  []string
	Debounce time.Duration
	// OnChange runs once per settled batch of changes. Calls never
	// overlap.
	OnChange func(ctx context.Context) error
}

type Watcher struct {
	fs   *fsnotify.Watcher
	opts Options

	mu      sync.Mutex
	timer   *time.Timer
	trigger chan struct{}
}

func New(opts Options) (*Watcher, error) {
	if opts.OnChange == nil {
		return nil, errors.New("watcher: OnChange not set")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{fs: fw, opts: opts, trigger: make(chan struct{}, 1)}
	for _, root := range opts.Roots {
		if err := w.addRecursive(root); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Excluded reports whether path is outside the watched set.
func (w *Watcher) Excluded(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if skipDirs[part] {
			return true
		}
	}
	for _, ex := range w.opts.Exclude {
		ex = filepath.Clean(ex)
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.Excluded(path) {
			logger.Debugf("watcher: excluding %s", path)
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to add watcher for %s: %w", path, err)
		}
		return nil
	})
}

// Run dispatches events until ctx is done. OnChange errors are logged
// and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.trigger:
				logger.Infof("file changes detected, rebuilding")
				if err := w.opts.OnChange(ctx); err != nil {
					logger.Errorf("rebuild failed: %v", err)
				}
			}
		}
	}()
	defer func() { <-done }()

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if w.Excluded(event.Name) {
				continue
			}
			logger.Debugf("file event: %s %s", event.Op, event.Name)
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						logger.Warnf("watcher: %v", err)
					}
				}
			}
			w.debounce()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			logger.Errorf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, func() {
		select {
		case w.trigger <- struct{}{}:
		default:
			// a rebuild is already pending
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) Close() error {
	w.stopTimer()
	return w.fs.Close()
}
