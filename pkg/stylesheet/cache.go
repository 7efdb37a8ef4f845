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

// Package stylesheet keeps the site's global stylesheet in memory.
//
// Request handlers read the cached text through Cache.Get and never touch the
// disk. The content is reloaded by Refresh, which only reads the file when its
// modification time has advanced past the cached one. A Watcher drives
// Refresh from filesystem notifications through a debouncer.
package stylesheet

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/spf13/afero"
)

// DefaultPath is the stylesheet location relative to the project root.
var DefaultPath = filepath.Join("public", "css", "style.css")

// entry is replaced whole on every refresh, so modTime always describes the
// content stored next to it.
type entry struct {
	content string
	modTime time.Time
}

// Cache holds the current contents of one stylesheet.
type Cache struct {
	path    string
	fs      afero.Fs
	logger  adapters.Logger
	current atomic.Pointer[entry]
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithFs sets the filesystem the cache reads from (default: the OS filesystem).
func WithFs(fsys afero.Fs) CacheOption {
	return func(c *Cache) {
		if fsys != nil {
			c.fs = fsys
		}
	}
}

// WithLogger sets the logger for cache diagnostics.
func WithLogger(logger adapters.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = adapters.OrNoOp(logger)
	}
}

// NewCache creates an empty cache for path. Nothing is read until the first
// Refresh.
func NewCache(path string, opts ...CacheOption) *Cache {
	c := &Cache{
		path:   filepath.Clean(path),
		fs:     afero.NewOsFs(),
		logger: adapters.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the default stylesheet path.
func (c *Cache) Path() string {
	return c.path
}

// Get returns the cached stylesheet, or "" if nothing has been loaded.
func (c *Cache) Get() string {
	if e := c.current.Load(); e != nil {
		return e.content
	}
	return ""
}

// ModTime returns the modification time of the cached content.
func (c *Cache) ModTime() time.Time {
	if e := c.current.Load(); e != nil {
		return e.modTime
	}
	return time.Time{}
}

// Refresh reloads the default stylesheet if it changed and returns the
// cached content.
func (c *Cache) Refresh() string {
	return c.RefreshPath(c.path)
}

// RefreshPath reloads path into the cache when its modification time is
// newer than the cached one, or when nothing is cached yet. A missing or
// unreadable file leaves the previous content in place.
func (c *Cache) RefreshPath(path string) string {
	ctx := context.Background()
	if path == "" {
		path = c.path
	}

	cur := c.current.Load()
	info, err := c.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug(ctx, "Stylesheet not found, keeping cached content",
				adapters.Field{Key: "path", Value: path})
		} else {
			c.logger.Warn(ctx, "Failed to stat stylesheet",
				adapters.Field{Key: "path", Value: path}, adapters.Err(err))
		}
		return c.Get()
	}
	if info.IsDir() {
		c.logger.Warn(ctx, "Stylesheet path is a directory",
			adapters.Field{Key: "path", Value: path})
		return c.Get()
	}
	if cur != nil && !info.ModTime().After(cur.modTime) {
		return cur.content
	}

	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		c.logger.Warn(ctx, "Failed to read stylesheet",
			adapters.Field{Key: "path", Value: path}, adapters.Err(err))
		return c.Get()
	}

	next := &entry{content: string(data), modTime: info.ModTime()}
	for {
		old := c.current.Load()
		if old != nil && !next.modTime.After(old.modTime) {
			// A concurrent refresh already stored content at least as new.
			return old.content
		}
		if c.current.CompareAndSwap(old, next) {
			break
		}
	}

	c.logger.Info(ctx, "Stylesheet cache updated",
		adapters.Field{Key: "path", Value: path},
		adapters.Field{Key: "bytes", Value: len(data)},
		adapters.Field{Key: "mod_time", Value: next.modTime})
	return next.content
}
