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

// Package gcs uploads assets to Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jeremyhahn/go-lightpages/pkg/common"
)

// GCS canned ACL equivalent of public-read.
const predefinedACLPublicRead = "publicRead"

// Small internal interfaces to enable unit tests without real GCS.
type gcsObject interface {
	NewWriter(ctx context.Context, attrs storage.ObjectAttrs) io.WriteCloser
	Delete(ctx context.Context) error
}

type gcsBucket interface {
	Object(name string) gcsObject
}

type gcsClient interface {
	Bucket(name string) gcsBucket
}

type clientWrapper struct{ *storage.Client }
type bucketWrapper struct{ *storage.BucketHandle }
type objectWrapper struct{ *storage.ObjectHandle }

func (c clientWrapper) Bucket(name string) gcsBucket { return bucketWrapper{c.Client.Bucket(name)} }
func (b bucketWrapper) Object(name string) gcsObject {
	return objectWrapper{b.BucketHandle.Object(name)}
}

func (o objectWrapper) NewWriter(ctx context.Context, attrs storage.ObjectAttrs) io.WriteCloser {
	w := o.ObjectHandle.NewWriter(ctx)
	w.ContentType = attrs.ContentType
	w.CacheControl = attrs.CacheControl
	w.PredefinedACL = attrs.PredefinedACL
	return w
}
func (o objectWrapper) Delete(ctx context.Context) error { return o.ObjectHandle.Delete(ctx) }

var gcsNewClient = func(ctx context.Context, opts ...option.ClientOption) (*storage.Client, error) {
	return storage.NewClient(ctx, opts...)
}

// GCS is an object store backed by a Google Cloud Storage bucket.
type GCS struct {
	client  gcsClient
	bucket  string
	timeout time.Duration
}

// New creates an unconfigured GCS store.
func New() common.ObjectStore {
	return &GCS{}
}

// Configure sets up the client.
// Required settings:
//   - bucket: the bucket name
//
// Optional settings:
//   - credentialsFile: service account JSON; defaults to ambient credentials
//   - endpoint: custom endpoint, e.g. a local emulator
//   - timeout: per-request timeout (default 60s)
func (g *GCS) Configure(settings map[string]string) error {
	g.bucket = settings["bucket"]
	if g.bucket == "" {
		return common.ErrBucketNotSet
	}
	g.timeout = common.TimeoutSetting(settings)
	if g.client != nil {
		return nil
	}

	var opts []option.ClientOption
	if f := settings["credentialsFile"]; f != "" {
		opts = append(opts, option.WithCredentialsFile(f))
	}
	if ep := settings["endpoint"]; ep != "" {
		opts = append(opts, option.WithEndpoint(ep), option.WithoutAuthentication())
	}

	client, err := gcsNewClient(context.Background(), opts...)
	if err != nil {
		return err
	}
	g.client = clientWrapper{client}
	return nil
}

// Upload writes data to key with a publicRead ACL and a year-long cache
// directive.
func (g *GCS) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if g.client == nil {
		return "", &common.UploadError{Key: key, Err: common.ErrNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx, storage.ObjectAttrs{
		ContentType:   common.ContentType(key, data),
		CacheControl:  common.CacheControlImmutable,
		PredefinedACL: predefinedACLPublicRead,
	})
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", &common.UploadError{Key: key, Err: err}
	}
	if err := w.Close(); err != nil {
		return "", &common.UploadError{Key: key, Err: err}
	}
	return key, nil
}

// Delete removes key from the bucket.
func (g *GCS) Delete(ctx context.Context, key string) error {
	if g.client == nil {
		return &common.DeleteError{Key: key, Err: common.ErrNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		err = errors.Join(common.ErrKeyNotFound, err)
	}
	if err != nil {
		return &common.DeleteError{Key: key, Err: err}
	}
	return nil
}
