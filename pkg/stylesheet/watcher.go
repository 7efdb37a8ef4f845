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

package stylesheet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/jeremyhahn/go-lightpages/pkg/debounce"
)

// ErrWatcherStopped is returned when Start is called on a closed watcher.
var ErrWatcherStopped = errors.New("stylesheet watcher is closed")

// Watcher refreshes a Cache when its file changes on disk. It watches the
// parent directory so that save-via-rename is seen, and funnels every
// matching event through a Debouncer so a burst causes one refresh.
type Watcher struct {
	cache     *Cache
	path      string
	logger    adapters.Logger
	debouncer *debounce.Debouncer[string]
	onRefresh func(path string)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// NewWatcher creates a watcher for cache's default path. delay is the
// debounce window; zero selects debounce.DefaultDelay.
func NewWatcher(cache *Cache, delay time.Duration, logger adapters.Logger) *Watcher {
	w := &Watcher{
		cache:  cache,
		path:   cache.Path(),
		logger: adapters.OrNoOp(logger),
	}
	w.debouncer = debounce.New(delay, func(path string) {
		w.cache.RefreshPath(path)
		w.mu.Lock()
		fn := w.onRefresh
		w.mu.Unlock()
		if fn != nil {
			fn(path)
		}
	})
	return w
}

// OnRefresh registers fn to run after every debounced refresh.
func (w *Watcher) OnRefresh(fn func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onRefresh = fn
}

// Start subscribes to filesystem notifications. Calling Start again releases
// the previous subscription first so events are never delivered twice.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherStopped
	}
	if w.watcher != nil {
		w.releaseLocked()
		w.logger.Info(context.Background(), "Previous stylesheet watcher closed")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create stylesheet watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.watcher = fsw
	w.done = make(chan struct{})
	w.wg.Add(1)
	go w.loop(fsw, w.done)

	w.logger.Info(context.Background(), "Watching for stylesheet changes",
		adapters.Field{Key: "path", Value: w.path})
	return nil
}

// Stop releases the subscription and cancels any pending refresh. The
// watcher cannot be restarted afterwards.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.debouncer.Stop()
	return w.releaseLocked()
}

func (w *Watcher) releaseLocked() error {
	if w.watcher == nil {
		return nil
	}
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	w.watcher = nil
	w.done = nil
	return err
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done <-chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error(context.Background(), "Stylesheet watcher error", adapters.Err(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if isHidden(filepath.Base(event.Name)) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	w.debouncer.Trigger(w.path)
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}
