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
	"mime"
	"path"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultStoreTimeout bounds a single remote upload or delete.
const DefaultStoreTimeout = 60 * time.Second

// ContentType returns the MIME type for an object, preferring the key's
// extension and falling back to sniffing the payload.
func ContentType(key string, data []byte) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return mimetype.Detect(data).String()
}

// TimeoutSetting parses settings["timeout"] as a duration or a number of
// seconds, returning DefaultStoreTimeout when absent or invalid.
func TimeoutSetting(settings map[string]string) time.Duration {
	raw := settings["timeout"]
	if raw == "" {
		return DefaultStoreTimeout
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return DefaultStoreTimeout
}

// BoolSetting reports whether settings[key] is "true".
func BoolSetting(settings map[string]string, key string) bool {
	v, err := strconv.ParseBool(settings[key])
	return err == nil && v
}
