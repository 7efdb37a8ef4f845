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

package common

import (
	"fmt"
	"time"
)

// EventKind classifies a filesystem change under a watched tree.
type EventKind int

const (
	// Added is reported for new files, including files present at startup.
	Added EventKind = iota + 1
	// Modified is reported when an existing file is written.
	Modified
	// Removed is reported when a file is deleted or renamed away.
	Removed
)

// String returns the lowercase name of the kind.
func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// WatchEvent is a single change notification for a path under a watched tree.
type WatchEvent struct {
	Kind      EventKind `json:"kind"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}
