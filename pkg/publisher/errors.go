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

import "fmt"

// Stage names the step of a publish or retract that failed.
type Stage string

const (
	StageTranscode Stage = "transcode"
	StageKey       Stage = "key"
	StageRead      Stage = "read"
	StageUpload    Stage = "upload"
	StageDelete    Stage = "delete"
)

// StageError reports a failure in one stage for one local path.
type StageError struct {
	Stage Stage
	Path  string
	Key   string
	Err   error
}

func (e *StageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s (key %s): %v", e.Stage, e.Path, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
