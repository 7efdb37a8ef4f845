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

package stylesheet

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFs counts how many times a file is opened for reading.
type countingFs struct {
	afero.Fs
	opens atomic.Int32
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.opens.Add(1)
	return c.Fs.Open(name)
}

const cssPath = "/site/public/css/style.css"

func writeCSS(t *testing.T, fsys afero.Fs, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, cssPath, []byte(content), 0o644))
	require.NoError(t, fsys.Chtimes(cssPath, mtime, mtime))
}

func TestCache_RefreshReadsOnceWhenUnchanged(t *testing.T) {
	fsys := &countingFs{Fs: afero.NewMemMapFs()}
	writeCSS(t, fsys, "body{color:red}", time.Unix(1000, 0))

	cache := NewCache(cssPath, WithFs(fsys))

	assert.Equal(t, "body{color:red}", cache.Refresh())
	assert.Equal(t, "body{color:red}", cache.Refresh())
	assert.Equal(t, int32(1), fsys.opens.Load(), "second refresh must be a cache hit")
	assert.Equal(t, time.Unix(1000, 0), cache.ModTime())
}

func TestCache_RefreshObservesNewerContent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCSS(t, fsys, "old", time.Unix(1000, 0))

	cache := NewCache(cssPath, WithFs(fsys))
	require.Equal(t, "old", cache.Refresh())

	writeCSS(t, fsys, "new", time.Unix(2000, 0))
	assert.Equal(t, "old", cache.Get(), "Get never touches disk")

	assert.Equal(t, "new", cache.Refresh())
	assert.Equal(t, "new", cache.Get())
}

func TestCache_RefreshIgnoresOlderOrEqualMtime(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCSS(t, fsys, "v1", time.Unix(2000, 0))

	cache := NewCache(cssPath, WithFs(fsys))
	require.Equal(t, "v1", cache.Refresh())

	writeCSS(t, fsys, "v2-same-mtime", time.Unix(2000, 0))
	assert.Equal(t, "v1", cache.Refresh())

	writeCSS(t, fsys, "v3-older", time.Unix(1000, 0))
	assert.Equal(t, "v1", cache.Refresh())
}

func TestCache_MissingFileKeepsStaleContent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cache := NewCache(cssPath, WithFs(fsys))

	assert.Equal(t, "", cache.Refresh(), "missing at startup yields empty content")
	assert.Equal(t, "", cache.Get())
	assert.True(t, cache.ModTime().IsZero())

	writeCSS(t, fsys, "body{}", time.Unix(1000, 0))
	require.Equal(t, "body{}", cache.Refresh())

	require.NoError(t, fsys.Remove(cssPath))
	assert.Equal(t, "body{}", cache.Refresh(), "stale-but-available")
	assert.Equal(t, "body{}", cache.Get())
}

func TestCache_DirectoryPathIsIgnored(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll(cssPath, 0o755))

	cache := NewCache(cssPath, WithFs(fsys))
	assert.Equal(t, "", cache.Refresh())
}

func TestCache_RefreshPath(t *testing.T) {
	fsys := afero.NewMemMapFs()
	other := "/site/public/css/print.css"
	require.NoError(t, afero.WriteFile(fsys, other, []byte("@media print{}"), 0o644))
	require.NoError(t, fsys.Chtimes(other, time.Unix(500, 0), time.Unix(500, 0)))

	cache := NewCache(cssPath, WithFs(fsys))
	assert.Equal(t, "@media print{}", cache.RefreshPath(other))
	assert.Equal(t, "@media print{}", cache.RefreshPath(""), "empty path falls back to the default, which is missing")
	assert.Equal(t, cssPath, cache.Path())
}

func TestCache_ConcurrentRefreshConverges(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCSS(t, fsys, "stable", time.Unix(1000, 0))
	cache := NewCache(cssPath, WithFs(fsys))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "stable", cache.Refresh())
			assert.Equal(t, "stable", cache.Get())
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Unix(1000, 0), cache.ModTime())
}

func TestCache_OsFilesystem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "style.css")
	require.NoError(t, os.WriteFile(path, []byte("h1{}"), 0o644))

	cache := NewCache(path)
	assert.Equal(t, "h1{}", cache.Refresh())
}
