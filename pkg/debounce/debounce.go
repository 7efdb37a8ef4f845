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

// Package debounce collapses bursts of triggers into a single deferred call.
//
// Editors commonly save through a temp file and a rename, which produces
// several filesystem events for one logical write. Wrapping the reaction in a
// Debouncer means it runs once, with the arguments of the last trigger, after
// the burst has been quiet for the configured window.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the quiescence window used when none is given.
const DefaultDelay = 1000 * time.Millisecond

// Debouncer owns a single pending timer. It is safe for concurrent use.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(T)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	stopped bool
}

// New returns a Debouncer that calls fn once delay has elapsed without a new
// trigger. A non-positive delay selects DefaultDelay.
func New[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer[T]{
		delay: delay,
		fn:    fn,
	}
}

// Delay returns the quiescence window.
func (d *Debouncer[T]) Delay() time.Duration {
	return d.delay
}

// Trigger schedules fn(arg), replacing any pending execution. Triggers after
// Stop are ignored.
func (d *Debouncer[T]) Trigger(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	// A timer that already fired may be blocked on mu; the generation check
	// in fire makes it a no-op once it has been superseded.
	d.gen++
	gen := d.gen
	d.pending = true
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(gen, arg)
	})
}

func (d *Debouncer[T]) fire(gen uint64, arg T) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.fn(arg)
}

// Pending reports whether an execution is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// CancelPending drops the scheduled execution, if any, and reports whether
// one was dropped.
func (d *Debouncer[T]) CancelPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

func (d *Debouncer[T]) cancelLocked() bool {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	was := d.pending
	d.pending = false
	return was
}

// Stop cancels any pending execution and ignores further triggers.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}
