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

package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/jeremyhahn/go-lightpages/pkg/common"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("worker pool is shut down")

// Handler processes one event. Errors are counted, not returned anywhere.
type Handler func(context.Context, common.WatchEvent) error

// WorkerPool runs a fixed number of workers over a bounded queue. Submit
// blocks while the queue is full.
type WorkerPool struct {
	workerCount int
	workQueue   chan common.WatchEvent
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	logger      adapters.Logger

	// closeMu guards workQueue against send-after-close.
	closeMu sync.RWMutex
	closed  bool

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// WorkerPoolConfig contains configuration for the worker pool.
type WorkerPoolConfig struct {
	WorkerCount int // Default: 1
	QueueSize   int // Default: 256
	Logger      adapters.Logger
}

// NewWorkerPool creates a new worker pool with the specified configuration.
func NewWorkerPool(config WorkerPoolConfig) *WorkerPool {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: config.WorkerCount,
		workQueue:   make(chan common.WatchEvent, config.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
		logger:      adapters.OrNoOp(config.Logger),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(handler Handler) {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i, handler)
	}
}

func (wp *WorkerPool) worker(id int, handler Handler) {
	defer wp.wg.Done()

	wp.logger.Debug(wp.ctx, "Worker started", adapters.Field{Key: "worker_id", Value: id})

	for ev := range wp.workQueue {
		if wp.ctx.Err() != nil {
			wp.dropped.Add(1)
			continue
		}
		if err := handler(wp.ctx, ev); err != nil {
			wp.failed.Add(1)
		}
		wp.processed.Add(1)
	}

	wp.logger.Debug(wp.ctx, "Worker queue closed", adapters.Field{Key: "worker_id", Value: id})
}

// Submit queues ev, blocking until there is room, ctx is done or the pool
// shuts down.
func (wp *WorkerPool) Submit(ctx context.Context, ev common.WatchEvent) error {
	wp.closeMu.RLock()
	defer wp.closeMu.RUnlock()
	if wp.closed {
		return ErrPoolClosed
	}

	select {
	case wp.workQueue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.ctx.Done():
		return ErrPoolClosed
	}
}

// Shutdown stops accepting work, cancels in-flight handlers, discards what
// is still queued and waits for the workers to exit.
func (wp *WorkerPool) Shutdown() {
	// Unblock any Submit waiting on a full queue before taking the lock.
	wp.cancel()

	wp.closeMu.Lock()
	if wp.closed {
		wp.closeMu.Unlock()
		return
	}
	wp.closed = true
	close(wp.workQueue)
	wp.closeMu.Unlock()

	wp.wg.Wait()

	wp.logger.Info(context.Background(), "Worker pool shutdown complete",
		adapters.Field{Key: "processed", Value: wp.processed.Load()},
		adapters.Field{Key: "failed", Value: wp.failed.Load()},
		adapters.Field{Key: "dropped", Value: wp.dropped.Load()})
}

// WorkerPoolMetrics contains counters about worker pool activity.
type WorkerPoolMetrics struct {
	Processed int64
	Failed    int64
	Dropped   int64
	Queued    int
}

// GetMetrics returns the current worker pool counters.
func (wp *WorkerPool) GetMetrics() WorkerPoolMetrics {
	return WorkerPoolMetrics{
		Processed: wp.processed.Load(),
		Failed:    wp.failed.Load(),
		Dropped:   wp.dropped.Load(),
		Queued:    len(wp.workQueue),
	}
}
