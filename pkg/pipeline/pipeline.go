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

// Package pipeline connects a recursive tree watcher to the asset publisher
// through a bounded work queue, and sweeps the tree once per subscription.
package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/jeremyhahn/go-lightpages/pkg/common"
	"github.com/jeremyhahn/go-lightpages/pkg/watcher"
)

const (
	DefaultWorkers   = 1
	DefaultQueueSize = 256
)

// AssetPublisher is what the pipeline dispatches events to.
type AssetPublisher interface {
	Publish(ctx context.Context, path string) error
	Retract(ctx context.Context, path string) error
}

// Config wires a Pipeline.
type Config struct {
	Root      string
	Publisher AssetPublisher
	Workers   int // Default: 1
	QueueSize int // Default: 256
	Logger    adapters.Logger
}

// Pipeline owns one watch subscription at a time.
type Pipeline struct {
	cfg    Config
	logger adapters.Logger

	mu        sync.Mutex
	watcher   *watcher.TreeWatcher
	pool      *WorkerPool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	sweepDone chan struct{}
}

// New creates a stopped Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	closed := make(chan struct{})
	close(closed)
	return &Pipeline{
		cfg:       cfg,
		logger:    adapters.OrNoOp(cfg.Logger),
		sweepDone: closed,
	}
}

// Start releases any existing subscription, subscribes to the root, starts
// the workers and begins the reconciliation sweep in the background.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	w, err := watcher.New(watcher.Config{Logger: p.logger, EventBuffer: p.cfg.QueueSize})
	if err != nil {
		return err
	}
	if err := w.Watch(p.cfg.Root); err != nil {
		_ = w.Stop()
		return err
	}

	pool := NewWorkerPool(WorkerPoolConfig{
		WorkerCount: p.cfg.Workers,
		QueueSize:   p.cfg.QueueSize,
		Logger:      p.logger,
	})
	pool.Start(p.handle)

	runCtx, cancel := context.WithCancel(ctx)
	p.watcher = w
	p.pool = pool
	p.cancel = cancel
	p.sweepDone = make(chan struct{})

	p.wg.Add(2)
	go p.dispatch(runCtx, w, pool)
	go p.sweep(runCtx, pool, p.sweepDone)

	p.logger.Info(ctx, "Image pipeline started",
		adapters.Field{Key: "root", Value: p.cfg.Root},
		adapters.Field{Key: "workers", Value: p.cfg.Workers},
		adapters.Field{Key: "queue", Value: p.cfg.QueueSize})
	return nil
}

// Stop releases the subscription and shuts the workers down. Safe to call
// when not started.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Pipeline) stopLocked() {
	if p.watcher == nil {
		return
	}
	p.cancel()
	if err := p.watcher.Stop(); err != nil {
		p.logger.Warn(context.Background(), "Error stopping watcher", adapters.Err(err))
	}
	p.wg.Wait()
	p.pool.Shutdown()

	p.watcher = nil
	p.pool = nil
	p.cancel = nil
}

// SweepDone is closed when the current subscription's sweep has queued every
// file, or was cancelled.
func (p *Pipeline) SweepDone() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sweepDone
}

// Metrics returns the current worker pool counters.
func (p *Pipeline) Metrics() WorkerPoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		return WorkerPoolMetrics{}
	}
	return p.pool.GetMetrics()
}

func (p *Pipeline) dispatch(ctx context.Context, w *watcher.TreeWatcher, pool *WorkerPool) {
	defer p.wg.Done()
	for ev := range w.Events() {
		if err := pool.Submit(ctx, ev); err != nil {
			return
		}
	}
}

func (p *Pipeline) sweep(ctx context.Context, pool *WorkerPool, done chan struct{}) {
	defer p.wg.Done()
	defer close(done)

	start := time.Now()
	queued := 0
	err := filepath.WalkDir(p.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.logger.Warn(ctx, "Sweep could not read path",
				adapters.Field{Key: "path", Value: path}, adapters.Err(err))
			return nil
		}
		if path != p.cfg.Root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := pool.Submit(ctx, common.WatchEvent{Kind: common.Added, Path: path, Timestamp: time.Now()}); err != nil {
			return err
		}
		queued++
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrPoolClosed) {
		p.logger.Error(ctx, "Sweep failed", adapters.Err(err))
	}
	p.logger.Info(ctx, "Sweep queued existing files",
		adapters.Field{Key: "root", Value: p.cfg.Root},
		adapters.Field{Key: "files", Value: queued},
		adapters.Field{Key: "duration", Value: time.Since(start)})
}

func (p *Pipeline) handle(ctx context.Context, ev common.WatchEvent) error {
	switch ev.Kind {
	case common.Added, common.Modified:
		return p.cfg.Publisher.Publish(ctx, ev.Path)
	case common.Removed:
		return p.cfg.Publisher.Retract(ctx, ev.Path)
	default:
		return nil
	}
}
