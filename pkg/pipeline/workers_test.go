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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-lightpages/pkg/common"
)

func TestWorkerPool_ProcessesAndCounts(t *testing.T) {
	wp := NewWorkerPool(WorkerPoolConfig{WorkerCount: 3, QueueSize: 10})
	var handled atomic.Int32
	wp.Start(func(_ context.Context, ev common.WatchEvent) error {
		handled.Add(1)
		if ev.Path == "bad" {
			return errors.New("failed")
		}
		return nil
	})

	for _, path := range []string{"a", "b", "bad", "c"} {
		require.NoError(t, wp.Submit(context.Background(), common.WatchEvent{Kind: common.Added, Path: path}))
	}
	assert.Eventually(t, func() bool { return wp.GetMetrics().Processed == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), wp.GetMetrics().Failed)
	assert.Equal(t, int32(4), handled.Load())

	wp.Shutdown()
	wp.Shutdown()
}

func TestWorkerPool_SubmitBlocksWhenFull(t *testing.T) {
	wp := NewWorkerPool(WorkerPoolConfig{QueueSize: 1})
	defer wp.Shutdown()

	require.NoError(t, wp.Submit(context.Background(), common.WatchEvent{Path: "first"}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := wp.Submit(ctx, common.WatchEvent{Path: "second"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, wp.GetMetrics().Queued)
}

func TestWorkerPool_ShutdownUnblocksSubmit(t *testing.T) {
	wp := NewWorkerPool(WorkerPoolConfig{QueueSize: 1})
	require.NoError(t, wp.Submit(context.Background(), common.WatchEvent{Path: "first"}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- wp.Submit(context.Background(), common.WatchEvent{Path: "second"})
	}()
	time.Sleep(20 * time.Millisecond)
	wp.Shutdown()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrPoolClosed)
	case <-time.After(time.Second):
		t.Fatal("Submit stayed blocked after Shutdown")
	}

	assert.ErrorIs(t, wp.Submit(context.Background(), common.WatchEvent{}), ErrPoolClosed)
}

func TestWorkerPool_ShutdownDropsQueued(t *testing.T) {
	wp := NewWorkerPool(WorkerPoolConfig{QueueSize: 5})
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	wp.Start(func(ctx context.Context, _ common.WatchEvent) error {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return ctx.Err()
	})

	for i := 0; i < 4; i++ {
		require.NoError(t, wp.Submit(context.Background(), common.WatchEvent{}))
	}
	<-started
	wp.Shutdown()
	close(release)

	m := wp.GetMetrics()
	assert.Equal(t, int64(1), m.Processed)
	assert.Equal(t, int64(1), m.Failed)
	assert.Equal(t, int64(3), m.Dropped)
}
