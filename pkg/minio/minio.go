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

// Package minio uploads assets to a MinIO server through the native
// minio-go client.
package minio

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jeremyhahn/go-lightpages/pkg/common"
)

// minioAPI is the subset of *miniogo.Client used here.
type minioAPI interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts miniogo.RemoveObjectOptions) error
}

// MinIO is an object store backed by a MinIO server.
type MinIO struct {
	client  minioAPI
	bucket  string
	timeout time.Duration
}

// New creates an unconfigured MinIO store.
func New() common.ObjectStore {
	return &MinIO{}
}

// Configure sets up the client.
// Required settings:
//   - bucket: the bucket name
//   - endpoint: server address, "host:port" or a full http(s) URL
//   - accessKey, secretKey: credentials
//
// Optional settings:
//   - region: defaults to "us-east-1"
//   - useSSL: "true" for TLS when endpoint carries no scheme
//   - timeout: per-request timeout (default 60s)
func (m *MinIO) Configure(settings map[string]string) error {
	m.bucket = settings["bucket"]
	if m.bucket == "" {
		return common.ErrBucketNotSet
	}
	endpoint := settings["endpoint"]
	if endpoint == "" {
		return common.ErrEndpointNotSet
	}
	accessKey := settings["accessKey"]
	if accessKey == "" {
		return common.ErrAccessKeyNotSet
	}
	secretKey := settings["secretKey"]
	if secretKey == "" {
		return common.ErrSecretKeyNotSet
	}
	region := settings["region"]
	if region == "" {
		region = "us-east-1"
	}
	m.timeout = common.TimeoutSetting(settings)

	if m.client != nil {
		return nil
	}

	host, secure, err := splitEndpoint(endpoint, common.BoolSetting(settings, "useSSL"))
	if err != nil {
		return err
	}
	client, err := miniogo.New(host, &miniogo.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return err
	}
	m.client = client
	return nil
}

// splitEndpoint turns a URL or bare host into the host and TLS flag the
// client expects.
func splitEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, err
	}
	return u.Host, u.Scheme == "https", nil
}

// Upload stores data under key, readable by anyone and cacheable for a year.
func (m *MinIO) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if m.client == nil {
		return "", &common.UploadError{Key: key, Err: common.ErrNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), miniogo.PutObjectOptions{
		ContentType:  common.ContentType(key, data),
		CacheControl: common.CacheControlImmutable,
		UserMetadata: map[string]string{"x-amz-acl": common.ACLPublicRead},
	})
	if err != nil {
		return "", &common.UploadError{Key: key, Err: err}
	}
	return key, nil
}

// Delete removes key from the bucket.
func (m *MinIO) Delete(ctx context.Context, key string) error {
	if m.client == nil {
		return &common.DeleteError{Key: key, Err: common.ErrNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.client.RemoveObject(ctx, m.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return &common.DeleteError{Key: key, Err: err}
	}
	return nil
}
