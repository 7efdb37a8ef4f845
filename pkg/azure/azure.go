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

// Package azure uploads assets to Azure Blob Storage. Blob visibility is a
// container-level setting in Azure, so the container must allow anonymous
// blob reads for published assets to be public.
package azure

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/jeremyhahn/go-lightpages/pkg/common"
)

// BlobAPI is the per-blob surface used by the store.
type BlobAPI interface {
	Upload(ctx context.Context, data []byte, headers azblob.BlobHTTPHeaders) error
	Delete(ctx context.Context) error
}

// ContainerAPI hands out blobs in one container.
type ContainerAPI interface {
	NewBlockBlob(name string) BlobAPI
}

type containerWrapper struct{ azblob.ContainerURL }
type blobWrapper struct{ azblob.BlockBlobURL }

// Function variables to enable unit testing without real network I/O.
var (
	azureUploadFn = func(ctx context.Context, data []byte, b azblob.BlockBlobURL, headers azblob.BlobHTTPHeaders) error {
		_, err := azblob.UploadBufferToBlockBlob(ctx, data, b, azblob.UploadToBlockBlobOptions{
			BlobHTTPHeaders: headers,
		})
		return err
	}
	azureDeleteFn = func(ctx context.Context, b azblob.BlockBlobURL) error {
		_, err := b.Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
		return err
	}
)

func (c containerWrapper) NewBlockBlob(name string) BlobAPI {
	return blobWrapper{c.ContainerURL.NewBlockBlobURL(name)}
}

func (b blobWrapper) Upload(ctx context.Context, data []byte, headers azblob.BlobHTTPHeaders) error {
	return azureUploadFn(ctx, data, b.BlockBlobURL, headers)
}
func (b blobWrapper) Delete(ctx context.Context) error {
	return azureDeleteFn(ctx, b.BlockBlobURL)
}

// Azure is an object store backed by a blob container.
type Azure struct {
	container ContainerAPI
	timeout   time.Duration
}

// New creates an unconfigured Azure store.
func New() common.ObjectStore {
	return &Azure{}
}

// Configure sets up the container client.
// Required settings:
//   - accountName: storage account name
//   - accountKey: storage account key
//   - containerName: blob container name
//
// Optional settings:
//   - endpoint: custom endpoint URL (for Azurite, etc.)
//   - timeout: per-request timeout (default 60s)
func (a *Azure) Configure(settings map[string]string) error {
	a.timeout = common.TimeoutSetting(settings)
	if a.container != nil {
		return nil
	}

	accountName := settings["accountName"]
	accountKey := settings["accountKey"]
	containerName := settings["containerName"]
	if accountName == "" || accountKey == "" || containerName == "" {
		return common.ErrAccountNotSet
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return err
	}
	p := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	raw := fmt.Sprintf("https://%s.blob.core.windows.net/%s", accountName, containerName)
	if ep := settings["endpoint"]; ep != "" {
		raw = fmt.Sprintf("%s/%s", ep, containerName)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	a.container = containerWrapper{azblob.NewContainerURL(*u, p)}
	return nil
}

// Upload writes data to the block blob named key.
func (a *Azure) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if a.container == nil {
		return "", &common.UploadError{Key: key, Err: common.ErrNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.container.NewBlockBlob(key).Upload(ctx, data, azblob.BlobHTTPHeaders{
		ContentType:  common.ContentType(key, data),
		CacheControl: common.CacheControlImmutable,
	})
	if err != nil {
		return "", &common.UploadError{Key: key, Err: err}
	}
	return key, nil
}

// Delete removes the blob named key.
func (a *Azure) Delete(ctx context.Context, key string) error {
	if a.container == nil {
		return &common.DeleteError{Key: key, Err: common.ErrNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.container.NewBlockBlob(key).Delete(ctx); err != nil {
		return &common.DeleteError{Key: key, Err: err}
	}
	return nil
}
