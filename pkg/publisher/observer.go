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

package publisher

import "time"

// Observer captures telemetry for publisher stages.
type Observer interface {
	RecordTranscode(duration time.Duration, err error)
	RecordUpload(duration time.Duration, sizeBytes uint64, err error)
	RecordDelete(duration time.Duration, err error)
}

// NoopObserver discards everything.
type NoopObserver struct{}

func (NoopObserver) RecordTranscode(time.Duration, error)      {}
func (NoopObserver) RecordUpload(time.Duration, uint64, error) {}
func (NoopObserver) RecordDelete(time.Duration, error)         {}

var _ Observer = NoopObserver{}
