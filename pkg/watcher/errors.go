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

package watcher

import (
	"errors"
	"fmt"
)

var (
	// ErrWatcherStopped is returned when operations are attempted on a stopped watcher.
	ErrWatcherStopped = errors.New("watcher stopped")

	// ErrAlreadyWatching is returned when Watch is called twice on one watcher.
	ErrAlreadyWatching = errors.New("watcher already has a root")
)

// WatcherError represents an error that occurred during a watcher operation.
type WatcherError struct {
	Op   string
	Path string
	Err  error
}

func (e *WatcherError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("watcher %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("watcher %s: %v", e.Op, e.Err)
}

func (e *WatcherError) Unwrap() error {
	return e.Err
}
