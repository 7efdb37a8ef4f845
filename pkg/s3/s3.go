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

// Package s3 uploads assets to Amazon S3 or any S3-compatible service such
// as DigitalOcean Spaces.
package s3

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jeremyhahn/go-lightpages/pkg/common"
)

// s3API is the subset of the S3 client used here, so tests can substitute it.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 is an object store backed by the S3 API.
type S3 struct {
	svc     s3API
	bucket  string
	timeout time.Duration
}

// New creates an unconfigured S3 store.
func New() common.ObjectStore {
	return &S3{}
}

// Configure sets up the client.
// Required settings:
//   - bucket: bucket (Space) name
//   - region: e.g. "us-east-1" or "nyc3"
//   - accessKey: access key id
//   - secretKey: secret access key
//
// Optional settings:
//   - endpoint: custom endpoint, e.g. "https://nyc3.digitaloceanspaces.com"
//   - usePathStyle: "true" for path-style addressing
//   - timeout: per-request timeout (default 60s)
func (s *S3) Configure(settings map[string]string) error {
	s.bucket = settings["bucket"]
	if s.bucket == "" {
		return common.ErrBucketNotSet
	}
	region := settings["region"]
	if region == "" {
		return common.ErrRegionNotSet
	}
	accessKey := settings["accessKey"]
	if accessKey == "" {
		return common.ErrAccessKeyNotSet
	}
	secretKey := settings["secretKey"]
	if secretKey == "" {
		return common.ErrSecretKeyNotSet
	}
	s.timeout = common.TimeoutSetting(settings)

	if s.svc != nil {
		return nil
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return err
	}

	endpoint := settings["endpoint"]
	pathStyle := common.BoolSetting(settings, "usePathStyle")
	s.svc = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
	})
	return nil
}

// Upload stores data under key with a public-read ACL and a long-lived
// cache directive.
func (s *S3) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if s.svc == nil {
		return "", &common.UploadError{Key: key, Err: common.ErrNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.svc.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(common.ContentType(key, data)),
		CacheControl:  aws.String(common.CacheControlImmutable),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", &common.UploadError{Key: key, Err: err}
	}
	return key, nil
}

// Delete removes key from the bucket.
func (s *S3) Delete(ctx context.Context, key string) error {
	if s.svc == nil {
		return &common.DeleteError{Key: key, Err: common.ErrNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.svc.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &common.DeleteError{Key: key, Err: err}
	}
	return nil
}
