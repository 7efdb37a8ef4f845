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

import "time"

// Server-wide defaults and limits
const (
	// DefaultHost is the interface the server binds to
	DefaultHost = "0.0.0.0"

	// DefaultPort is used when neither the config nor PORT sets one
	DefaultPort = 8000

	// DefaultReadTimeout is the maximum duration for reading a request
	DefaultReadTimeout = 30 * time.Second

	// DefaultWriteTimeout is the maximum duration for writing a response
	DefaultWriteTimeout = 60 * time.Second

	// DefaultIdleTimeout is how long keep-alive connections wait for the next request
	DefaultIdleTimeout = 120 * time.Second

	// MaxHeaderBytes caps request header size (1 MB)
	MaxHeaderBytes = 1 << 20

	// ProxyPrefix is the path prefix forwarded to the tag manager
	ProxyPrefix = "/s-g-t-m"

	// CDNPrefix is the path prefix redirected to the CDN
	CDNPrefix = "/cdn"
)
