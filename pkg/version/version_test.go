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
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	v := Get()
	assert.NotEmpty(t, v)
	assert.Equal(t, strings.TrimSpace(v), v)
	assert.Equal(t, v, Get())
}

func TestString(t *testing.T) {
	orig, origCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = orig, origCommit })

	Version = "1.2.3"
	Commit = ""
	s := String()
	assert.True(t, strings.HasPrefix(s, "lightpages 1.2.3 "))
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)

	Commit = "abc123"
	assert.Contains(t, String(), "lightpages 1.2.3 (abc123)")
}
