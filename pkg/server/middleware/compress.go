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

package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// DefaultCompressMinSize is the smallest response body that is compressed.
const DefaultCompressMinSize = 1024

// Compress wraps h with gzip compression for responses of at least minSize
// bytes. A non-positive minSize selects DefaultCompressMinSize.
func Compress(h http.Handler, minSize int) (http.Handler, error) {
	if minSize <= 0 {
		minSize = DefaultCompressMinSize
	}
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(minSize))
	if err != nil {
		return nil, err
	}
	return wrap(h), nil
}
