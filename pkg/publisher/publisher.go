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

// Package publisher mirrors local images and their WebP derivatives into an
// object store, and propagates local deletions.
package publisher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/jeremyhahn/go-lightpages/pkg/common"
	"github.com/jeremyhahn/go-lightpages/pkg/transcode"
)

// Transcoder produces a derivative file for an input image and returns its
// path.
type Transcoder interface {
	Convert(ctx context.Context, inputPath string) (string, error)
}

// Options select publish and retract policies.
type Options struct {
	// AssetRoot is the path segment keys are relative to. Default "public".
	AssetRoot string

	// UploadOriginalOnTranscodeFailure uploads the original alone when the
	// derivative cannot be produced. When false the publish is aborted and
	// nothing is uploaded.
	UploadOriginalOnTranscodeFailure bool

	// RetractDerivative also deletes the derivative key when a supported
	// image is removed. When false only the removed path's key is deleted
	// and the remote derivative is left in place.
	RetractDerivative bool
}

// Config wires a Publisher.
type Config struct {
	// Store may be nil, in which case no remote calls are made.
	Store      common.ObjectStore
	Transcoder Transcoder
	Logger     adapters.Logger
	Observer   Observer
	Options    Options
}

// Publisher holds no per-asset state; every call is independent.
type Publisher struct {
	store      common.ObjectStore
	transcoder Transcoder
	logger     adapters.Logger
	observer   Observer
	opts       Options
}

// New creates a Publisher. A nil Transcoder selects cwebp with defaults.
func New(cfg Config) *Publisher {
	if cfg.Transcoder == nil {
		cfg.Transcoder = transcode.NewCWebP()
	}
	if cfg.Observer == nil {
		cfg.Observer = NoopObserver{}
	}
	if cfg.Options.AssetRoot == "" {
		cfg.Options.AssetRoot = common.DefaultAssetRoot
	}
	return &Publisher{
		store:      cfg.Store,
		transcoder: cfg.Transcoder,
		logger:     adapters.OrNoOp(cfg.Logger),
		observer:   cfg.Observer,
		opts:       cfg.Options,
	}
}

// Remote reports whether a store is configured.
func (p *Publisher) Remote() bool {
	return p.store != nil
}

// Publish transcodes a supported image and uploads the original and the
// derivative concurrently. Unsupported files are ignored silently. Every
// failure is logged here; the returned error is for callers that want it.
func (p *Publisher) Publish(ctx context.Context, path string) error {
	if !transcode.IsSupported(path) {
		return nil
	}

	start := time.Now()
	derivative, err := p.transcoder.Convert(ctx, path)
	p.observer.RecordTranscode(time.Since(start), err)
	var transcodeErr error
	if err != nil {
		transcodeErr = p.report(ctx, StageTranscode, path, "", err)
		if !p.opts.UploadOriginalOnTranscodeFailure {
			return transcodeErr
		}
	} else {
		p.logger.Debug(ctx, "Image transcoded",
			adapters.Field{Key: "path", Value: path},
			adapters.Field{Key: "output", Value: derivative},
			adapters.Field{Key: "duration", Value: time.Since(start)})
	}

	if p.store == nil {
		p.logger.Debug(ctx, "No object store configured, skipping upload",
			adapters.Field{Key: "path", Value: path})
		return transcodeErr
	}

	files := []string{path}
	if transcodeErr == nil {
		files = append(files, derivative)
	}

	errs := make([]error, len(files))
	var g errgroup.Group
	for i, file := range files {
		g.Go(func() error {
			errs[i] = p.upload(ctx, file)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(append([]error{transcodeErr}, errs...)...)
}

func (p *Publisher) upload(ctx context.Context, path string) error {
	key, err := common.AssetKeyFor(p.opts.AssetRoot, path)
	if err != nil {
		return p.report(ctx, StageKey, path, "", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p.report(ctx, StageRead, path, key, err)
	}

	start := time.Now()
	_, err = p.store.Upload(ctx, key, data)
	p.observer.RecordUpload(time.Since(start), uint64(len(data)), err)
	if err != nil {
		return p.report(ctx, StageUpload, path, key, err)
	}
	p.logger.Info(ctx, "Asset uploaded",
		adapters.Field{Key: "key", Value: key},
		adapters.Field{Key: "size", Value: len(data)},
		adapters.Field{Key: "duration", Value: time.Since(start)})
	return nil
}

// Retract deletes the remote object for a removed local path. Only that key
// is deleted unless Options.RetractDerivative is set.
func (p *Publisher) Retract(ctx context.Context, path string) error {
	if p.store == nil {
		return nil
	}
	targets := []string{path}
	if p.opts.RetractDerivative && transcode.IsSupported(path) {
		targets = append(targets, transcode.OutputPath(path))
	}

	var errs []error
	for _, target := range targets {
		errs = append(errs, p.delete(ctx, target))
	}
	return errors.Join(errs...)
}

func (p *Publisher) delete(ctx context.Context, path string) error {
	key, err := common.AssetKeyFor(p.opts.AssetRoot, path)
	if err != nil {
		return p.report(ctx, StageKey, path, "", err)
	}

	start := time.Now()
	err = p.store.Delete(ctx, key)
	p.observer.RecordDelete(time.Since(start), err)
	if err != nil {
		return p.report(ctx, StageDelete, path, key, err)
	}
	p.logger.Info(ctx, "Asset deleted", adapters.Field{Key: "key", Value: key})
	return nil
}

// ReconcileTree publishes every non-hidden regular file under root, one at a
// time. It stops early when ctx is cancelled.
func (p *Publisher) ReconcileTree(ctx context.Context, root string) error {
	var errs []error
	published := 0
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, p.report(ctx, StageRead, path, "", err))
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Publish(ctx, path); err != nil {
			errs = append(errs, err)
		}
		published++
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}

	p.logger.Info(ctx, "Tree reconciled",
		adapters.Field{Key: "root", Value: root},
		adapters.Field{Key: "files", Value: published},
		adapters.Field{Key: "errors", Value: len(errs)})
	return errors.Join(errs...)
}

// report is the single place stage failures are logged. It returns the
// failure as a *StageError.
func (p *Publisher) report(ctx context.Context, stage Stage, path, key string, err error) error {
	serr := &StageError{Stage: stage, Path: path, Key: key, Err: err}
	fields := []adapters.Field{
		{Key: "stage", Value: string(stage)},
		{Key: "path", Value: path},
		adapters.Err(err),
	}
	if key != "" {
		fields = append(fields, adapters.Field{Key: "key", Value: key})
	}

	switch {
	case errors.Is(err, context.Canceled):
		p.logger.Debug(ctx, "Asset stage cancelled", fields...)
	case stage == StageKey:
		p.logger.Warn(ctx, "Asset outside asset root", fields...)
	default:
		p.logger.Error(ctx, "Asset stage failed", fields...)
	}
	return serr
}
