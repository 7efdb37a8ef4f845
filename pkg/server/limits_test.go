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

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimitsConstants(t *testing.T) {
	t.Run("DefaultPort matches the historical default", func(t *testing.T) {
		assert.Equal(t, 8000, DefaultPort)
	})

	t.Run("timeouts are ordered", func(t *testing.T) {
		assert.Greater(t, DefaultReadTimeout, time.Duration(0))
		assert.GreaterOrEqual(t, DefaultWriteTimeout, DefaultReadTimeout)
		assert.GreaterOrEqual(t, DefaultIdleTimeout, DefaultWriteTimeout)
	})

	t.Run("MaxHeaderBytes is 1 MB", func(t *testing.T) {
		assert.Equal(t, 1024*1024, MaxHeaderBytes)
	})

	t.Run("prefixes are rooted", func(t *testing.T) {
		assert.Equal(t, "/s-g-t-m", ProxyPrefix)
		assert.Equal(t, "/cdn", CDNPrefix)
	})
}
