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

// Package local mirrors published assets into a directory on disk. It backs
// development setups where the CDN base URL points at a static file server.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/jeremyhahn/go-lightpages/pkg/common"
)

const metadataSuffix = ".metadata.json"

// Metadata is the sidecar written next to every stored object, recording the
// headers a real object store would have served it with.
type Metadata struct {
	ContentType  string    `json:"content_type"`
	CacheControl string    `json:"cache_control"`
	ACL          string    `json:"acl"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Local is an object store rooted at a directory.
type Local struct {
	path   string
	fs     afero.Fs
	logger adapters.Logger
}

// New creates an unconfigured Local store on the OS filesystem.
func New() common.ObjectStore {
	return &Local{fs: afero.NewOsFs(), logger: adapters.NewNoOpLogger()}
}

// NewWithFs creates a Local store over fs.
func NewWithFs(fs afero.Fs, logger adapters.Logger) *Local {
	return &Local{fs: fs, logger: adapters.OrNoOp(logger)}
}

// Configure sets up the store.
// Settings:
//   - path: the directory objects are written under (required)
func (l *Local) Configure(settings map[string]string) error {
	l.path = settings["path"]
	if l.path == "" {
		return common.ErrPathNotSet
	}
	if l.fs == nil {
		l.fs = afero.NewOsFs()
	}
	if l.logger == nil {
		l.logger = adapters.NewNoOpLogger()
	}
	return l.fs.MkdirAll(l.path, 0750)
}

// Upload writes data and its metadata sidecar under the configured path.
func (l *Local) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if l.path == "" {
		return "", &common.UploadError{Key: key, Err: common.ErrNotConfigured}
	}
	if err := common.ValidateKey(key); err != nil {
		return "", &common.UploadError{Key: key, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return "", &common.UploadError{Key: key, Err: err}
	}

	path := filepath.Join(l.path, filepath.FromSlash(key))
	if err := l.fs.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", &common.UploadError{Key: key, Err: err}
	}
	if err := afero.WriteFile(l.fs, path, data, 0640); err != nil {
		return "", &common.UploadError{Key: key, Err: err}
	}

	meta, err := json.Marshal(Metadata{
		ContentType:  common.ContentType(key, data),
		CacheControl: common.CacheControlImmutable,
		ACL:          common.ACLPublicRead,
		Size:         int64(len(data)),
		LastModified: time.Now().UTC(),
	})
	if err != nil {
		return "", &common.UploadError{Key: key, Err: err}
	}
	if err := afero.WriteFile(l.fs, path+metadataSuffix, meta, 0640); err != nil {
		return "", &common.UploadError{Key: key, Err: err}
	}

	l.logger.Debug(ctx, "object written",
		adapters.Field{Key: "key", Value: key},
		adapters.Field{Key: "size", Value: len(data)})
	return key, nil
}

// Delete removes key and its sidecar.
func (l *Local) Delete(ctx context.Context, key string) error {
	if l.path == "" {
		return &common.DeleteError{Key: key, Err: common.ErrNotConfigured}
	}
	if err := common.ValidateKey(key); err != nil {
		return &common.DeleteError{Key: key, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &common.DeleteError{Key: key, Err: err}
	}

	path := filepath.Join(l.path, filepath.FromSlash(key))
	if err := l.fs.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = errors.Join(common.ErrKeyNotFound, err)
		}
		return &common.DeleteError{Key: key, Err: err}
	}
	if err := l.fs.Remove(path + metadataSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &common.DeleteError{Key: key, Err: err}
	}
	return nil
}

// ReadMetadata returns the sidecar stored for key.
func (l *Local) ReadMetadata(key string) (*Metadata, error) {
	if err := common.ValidateKey(key); err != nil {
		return nil, err
	}
	raw, err := afero.ReadFile(l.fs, filepath.Join(l.path, filepath.FromSlash(key))+metadataSuffix)
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
