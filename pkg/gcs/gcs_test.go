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

package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/jeremyhahn/go-lightpages/pkg/common"
)

type mockWriter struct {
	buf      bytes.Buffer
	writeErr error
	closeErr error
	closed   bool
}

func (w *mockWriter) Write(p []byte) (int, error) {
	if w.writeErr != nil {
		return 0, w.writeErr
	}
	return w.buf.Write(p)
}

func (w *mockWriter) Close() error {
	w.closed = true
	return w.closeErr
}

type mockObject struct {
	name      string
	writer    *mockWriter
	attrs     storage.ObjectAttrs
	deleteErr error
	deleted   bool
}

func (o *mockObject) NewWriter(_ context.Context, attrs storage.ObjectAttrs) io.WriteCloser {
	o.attrs = attrs
	return o.writer
}

func (o *mockObject) Delete(context.Context) error {
	o.deleted = true
	return o.deleteErr
}

type mockBucket struct {
	objects map[string]*mockObject
}

func (b *mockBucket) Object(name string) gcsObject {
	if o, ok := b.objects[name]; ok {
		return o
	}
	o := &mockObject{name: name, writer: &mockWriter{}}
	b.objects[name] = o
	return o
}

type mockClient struct {
	buckets map[string]*mockBucket
}

func (c *mockClient) Bucket(name string) gcsBucket {
	b, ok := c.buckets[name]
	if !ok {
		b = &mockBucket{objects: map[string]*mockObject{}}
		c.buckets[name] = b
	}
	return b
}

func newMockGCS() (*GCS, *mockClient) {
	c := &mockClient{buckets: map[string]*mockBucket{}}
	return &GCS{client: c, bucket: "assets", timeout: time.Second}, c
}

func TestGCS_Configure(t *testing.T) {
	g := &GCS{}
	assert.ErrorIs(t, g.Configure(map[string]string{}), common.ErrBucketNotSet)

	orig := gcsNewClient
	defer func() { gcsNewClient = orig }()

	var gotOpts int
	gcsNewClient = func(_ context.Context, opts ...option.ClientOption) (*storage.Client, error) {
		gotOpts = len(opts)
		return &storage.Client{}, nil
	}
	require.NoError(t, g.Configure(map[string]string{
		"bucket":   "assets",
		"endpoint": "http://localhost:4443/storage/v1/",
	}))
	assert.Equal(t, 2, gotOpts)
	assert.NotNil(t, g.client)

	g2 := &GCS{}
	gcsNewClient = func(context.Context, ...option.ClientOption) (*storage.Client, error) {
		return nil, errors.New("no credentials")
	}
	assert.Error(t, g2.Configure(map[string]string{"bucket": "assets"}))
}

func TestGCS_Upload(t *testing.T) {
	g, c := newMockGCS()

	key, err := g.Upload(context.Background(), "images/a.webp", []byte("webp"))
	require.NoError(t, err)
	assert.Equal(t, "images/a.webp", key)

	obj := c.buckets["assets"].objects["images/a.webp"]
	require.NotNil(t, obj)
	assert.Equal(t, "webp", obj.writer.buf.String())
	assert.True(t, obj.writer.closed)
	assert.Equal(t, "publicRead", obj.attrs.PredefinedACL)
	assert.Equal(t, common.CacheControlImmutable, obj.attrs.CacheControl)
	assert.Equal(t, "image/webp", obj.attrs.ContentType)
}

func TestGCS_Upload_Errors(t *testing.T) {
	g, c := newMockGCS()
	b := c.Bucket("assets").(*mockBucket)
	b.objects["w.png"] = &mockObject{writer: &mockWriter{writeErr: errors.New("write failed")}}
	b.objects["c.png"] = &mockObject{writer: &mockWriter{closeErr: errors.New("close failed")}}

	for _, key := range []string{"w.png", "c.png"} {
		_, err := g.Upload(context.Background(), key, []byte("x"))
		var uerr *common.UploadError
		require.ErrorAs(t, err, &uerr, key)
		assert.Equal(t, key, uerr.Key)
		assert.True(t, b.objects[key].writer.closed)
	}
}

func TestGCS_Delete(t *testing.T) {
	g, c := newMockGCS()
	require.NoError(t, g.Delete(context.Background(), "a.png"))
	assert.True(t, c.buckets["assets"].objects["a.png"].deleted)

	c.buckets["assets"].objects["gone.png"] = &mockObject{deleteErr: storage.ErrObjectNotExist}
	err := g.Delete(context.Background(), "gone.png")
	var derr *common.DeleteError
	require.ErrorAs(t, err, &derr)
	assert.ErrorIs(t, err, common.ErrKeyNotFound)
}

func TestGCS_NotConfigured(t *testing.T) {
	g := New()
	_, err := g.Upload(context.Background(), "k", nil)
	assert.ErrorIs(t, err, common.ErrNotConfigured)
	assert.ErrorIs(t, g.Delete(context.Background(), "k"), common.ErrNotConfigured)
}
