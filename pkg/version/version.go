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

package version

import (
	"fmt"
	"runtime"
)

// Version is the application version.
// This should be set at build time using:
//
//	go build -ldflags "-X github.com/jeremyhahn/go-lightpages/pkg/version.Version=1.0.0"
var Version = "0.1.0-alpha" // default version if not set at build time

// Commit is the source revision, also set through ldflags.
var Commit = ""

// Get returns the application version string.
// The version can be overridden at build time using ldflags.
func Get() string {
	return Version
}

// String describes the build for the version command.
func String() string {
	s := "lightpages " + Version
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	return fmt.Sprintf("%s %s/%s %s", s, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
