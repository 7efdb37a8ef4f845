// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-lightpages.
//
// go-lightpages is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package watcher reports file additions, modifications and removals in a
// directory tree, including directories created after the watch began.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/jeremyhahn/go-lightpages/pkg/common"
)

// DefaultEventBuffer is the capacity of the events channel.
const DefaultEventBuffer = 256

// Config contains configuration options for TreeWatcher.
type Config struct {
	Logger      adapters.Logger
	EventBuffer int // Default: 256
}

// TreeWatcher watches one root directory recursively. Sends on the events
// channel block until the consumer receives or the watcher stops.
type TreeWatcher struct {
	watcher *fsnotify.Watcher
	events  chan common.WatchEvent
	logger  adapters.Logger

	mu       sync.Mutex
	root     string
	watching map[string]bool
	gone     map[string]bool // removed directories, until their duplicate Remove arrives
	stopChan chan struct{}
	stopped  bool

	ctx context.Context
	wg  sync.WaitGroup
}

// New creates a TreeWatcher. Nothing is watched until Watch is called.
func New(config Config) (*TreeWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &WatcherError{Op: "create", Err: err}
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultEventBuffer
	}

	w := &TreeWatcher{
		watcher:  fw,
		events:   make(chan common.WatchEvent, config.EventBuffer),
		logger:   adapters.OrNoOp(config.Logger),
		watching: make(map[string]bool),
		gone:     make(map[string]bool),
		stopChan: make(chan struct{}),
		ctx:      context.Background(),
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Watch adds root and every directory below it.
func (w *TreeWatcher) Watch(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return &WatcherError{Op: "watch", Path: root, Err: ErrWatcherStopped}
	}
	root = filepath.Clean(root)
	if w.root != "" {
		return &WatcherError{Op: "watch", Path: root, Err: ErrAlreadyWatching}
	}

	info, err := os.Stat(root)
	if err != nil {
		return &WatcherError{Op: "watch", Path: root, Err: err}
	}
	if !info.IsDir() {
		return &WatcherError{Op: "watch", Path: root, Err: fs.ErrInvalid}
	}
	w.root = root
	if err := w.watcher.Add(root); err != nil {
		w.root = ""
		return &WatcherError{Op: "watch", Path: root, Err: err}
	}
	w.watching[root] = true

	w.addTreeLocked(root)
	w.logger.Info(w.ctx, "Started watching tree",
		adapters.Field{Key: "root", Value: root},
		adapters.Field{Key: "directories", Value: len(w.watching)})
	return nil
}

// Root returns the watched root, or "" before Watch.
func (w *TreeWatcher) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

// Events returns the read-only channel of watch events. It is closed by Stop.
func (w *TreeWatcher) Events() <-chan common.WatchEvent {
	return w.events
}

// Stop releases the subscription and closes the events channel. Safe to
// call more than once.
func (w *TreeWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	root := w.root
	w.mu.Unlock()

	close(w.stopChan)

	var closeErr error
	if err := w.watcher.Close(); err != nil {
		closeErr = &WatcherError{Op: "close", Path: root, Err: err}
	}

	w.wg.Wait()
	close(w.events)

	w.logger.Info(w.ctx, "Tree watcher stopped", adapters.Field{Key: "root", Value: root})
	return closeErr
}

func (w *TreeWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(w.ctx, "Filesystem watcher error", adapters.Err(err))

		case <-w.stopChan:
			return
		}
	}
}

func (w *TreeWatcher) handleEvent(event fsnotify.Event) {
	root := w.Root()
	if isHidden(root, event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		w.mu.Lock()
		delete(w.gone, filepath.Clean(event.Name))
		w.mu.Unlock()
		info, err := os.Stat(event.Name)
		if err != nil {
			// Gone before we could look at it; the Remove event follows.
			return
		}
		if info.IsDir() {
			w.handleNewDir(root, event.Name)
			return
		}
		w.emit(common.Added, event.Name)

	case event.Has(fsnotify.Write):
		w.emit(common.Modified, event.Name)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		path := filepath.Clean(event.Name)
		w.mu.Lock()
		wasDir := w.forgetDirLocked(path)
		w.mu.Unlock()
		if wasDir {
			return
		}
		w.emit(common.Removed, event.Name)

	default:
		// Chmod only.
	}
}

// handleNewDir watches a newly created directory tree and reports the files
// that were already inside it, since their Create events predate the watch.
func (w *TreeWatcher) handleNewDir(root, dir string) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.addTreeLocked(dir)
	w.mu.Unlock()

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if isHidden(root, path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			w.emit(common.Added, path)
		}
		return nil
	})
}

// addTreeLocked adds watches for dir and all non-hidden subdirectories.
func (w *TreeWatcher) addTreeLocked(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn(w.ctx, "Error walking path",
				adapters.Field{Key: "path", Value: path}, adapters.Err(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if isHidden(w.root, path) {
			return filepath.SkipDir
		}
		path = filepath.Clean(path)
		if w.watching[path] {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn(w.ctx, "Failed to watch directory",
				adapters.Field{Key: "path", Value: path}, adapters.Err(err))
			return nil
		}
		w.watching[path] = true
		w.logger.Debug(w.ctx, "Started watching directory", adapters.Field{Key: "path", Value: path})
		return nil
	})
}

// forgetDirLocked drops path and anything below it from the watch set and
// reports whether path was, or recently was, a watched directory.
func (w *TreeWatcher) forgetDirLocked(path string) bool {
	if w.gone[path] {
		delete(w.gone, path)
		return true
	}
	if !w.watching[path] {
		return false
	}
	w.gone[path] = true
	prefix := path + string(filepath.Separator)
	for p := range w.watching {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(w.watching, p)
		}
	}
	return true
}

// isHidden reports whether any component of path below root starts with a
// dot.
func isHidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func (w *TreeWatcher) emit(kind common.EventKind, path string) {
	ev := common.WatchEvent{Kind: kind, Path: path, Timestamp: time.Now()}
	select {
	case w.events <- ev:
		w.logger.Debug(w.ctx, "Filesystem event emitted",
			adapters.Field{Key: "path", Value: path},
			adapters.Field{Key: "kind", Value: kind.String()})
	case <-w.stopChan:
	}
}
