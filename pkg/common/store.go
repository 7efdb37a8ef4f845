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
	"context"
	"fmt"
)

// Upload policy applied by every remote adapter. Published assets are
// immutable per key, so a year-long cache lifetime is safe.
const (
	CacheControlImmutable = "max-age=31536000"
	ACLPublicRead         = "public-read"
)

// Backend names accepted by the store factory and the cdn.backend setting.
const (
	BackendSpaces = "spaces"
	BackendS3     = "s3"
	BackendMinIO  = "minio"
	BackendGCS    = "gcs"
	BackendAzure  = "azure"
	BackendLocal  = "local"
	BackendMemory = "memory"
)

// ObjectStore is the narrow remote-store contract the asset pipeline needs.
// Adapters upload whole byte buffers; multipart strategy is their own concern.
type ObjectStore interface {
	// Configure sets up the backend with the necessary credentials and settings.
	Configure(settings map[string]string) error

	// Upload stores data under key as a public object and returns the key
	// actually written.
	Upload(ctx context.Context, key string, data []byte) (string, error)

	// Delete removes key. Deleting a missing key is not an error for
	// backends that treat deletes as idempotent.
	Delete(ctx context.Context, key string) error
}

// UploadError is returned by ObjectStore.Upload.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// DeleteError is returned by ObjectStore.Delete.
type DeleteError struct {
	Key string
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %s: %v", e.Key, e.Err)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}
