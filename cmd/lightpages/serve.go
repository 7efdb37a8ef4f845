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

package main

import (
	"context"
	"errors"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/jeremyhahn/go-lightpages/pkg/common"
	"github.com/jeremyhahn/go-lightpages/pkg/config"
	"github.com/jeremyhahn/go-lightpages/pkg/factory"
	"github.com/jeremyhahn/go-lightpages/pkg/publisher"
	"github.com/jeremyhahn/go-lightpages/pkg/server"
	"github.com/jeremyhahn/go-lightpages/pkg/server/middleware"
	"github.com/jeremyhahn/go-lightpages/pkg/transcode"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site and keep images and the stylesheet in sync",
	Example: `  lightpages serve                       # Serve the current directory on :8000
  lightpages serve --root ./site --port 3000
  CDN_REGION=nyc3 CDN_BUCKET_NAME=assets CDN_ACCESS_KEY=... CDN_ACCESS_SECRET=... lightpages serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, globalConfig, logger)
	},
}

func runServe(ctx context.Context, cfg *config.Config, logger adapters.Logger) error {
	store, err := newStore(cfg.CDN, logger)
	if err != nil {
		return err
	}

	sc := serverConfig(cfg, logger)
	if sc.TLS, err = tlsSettings(cfg.Server); err != nil {
		return err
	}

	srv, err := server.New(sc, store)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		shutdown(srv, logger)
		if errors.Is(err, server.ErrListenBind) {
			logger.Error(ctx, "Server failed to start", adapters.Err(err))
		}
		return err
	case <-ctx.Done():
		logger.Info(context.Background(), "Shutdown signal received")
		shutdown(srv, logger)
		return <-errCh
	}
}

func shutdown(srv *server.Server, logger adapters.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error(ctx, "Server shutdown failed", adapters.Err(err))
	}
}

// newStore builds the configured object store, or returns nil when the
// backend's required settings are absent.
func newStore(cdn config.CDNConfig, logger adapters.Logger) (common.ObjectStore, error) {
	if !cdn.Configured() {
		logger.Info(context.Background(), "CDN not configured, images will not be uploaded",
			adapters.Field{Key: "backend", Value: cdn.Backend})
		return nil, nil
	}
	store, err := factory.NewStore(cdn.Backend, cdn.StoreSettings())
	if err != nil {
		return nil, err
	}
	logger.Info(context.Background(), "CDN configured",
		adapters.Field{Key: "backend", Value: cdn.Backend},
		adapters.Field{Key: "bucket", Value: cdn.Bucket},
		adapters.Field{Key: "base_url", Value: cdn.BaseURL})
	return store, nil
}

func newTranscoder(images config.ImagesConfig) *transcode.CWebP {
	t := transcode.NewCWebP()
	t.Binary = images.CWebP
	if images.Quality > 0 {
		t.Quality = images.Quality
	}
	return t
}

func publishOptions(images config.ImagesConfig) publisher.Options {
	return publisher.Options{
		AssetRoot:                        common.DefaultAssetRoot,
		UploadOriginalOnTranscodeFailure: images.UploadOriginalOnTranscodeFailure,
		RetractDerivative:                images.RetractDerivative,
	}
}

func serverConfig(cfg *config.Config, logger adapters.Logger) *server.Config {
	return &server.Config{
		Root:               cfg.Server.Root,
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		CDNBaseURL:         cfg.CDN.BaseURL,
		ScriptSources:      cfg.CSP.ScriptSources,
		ImgSources:         cfg.CSP.ImgSources,
		ConnectSources:     cfg.CSP.ConnectSources,
		Production:         cfg.Server.IsProduction(),
		SGTMURL:            cfg.Server.SGTMURL,
		CompressMinSize:    cfg.Server.CompressMinSize,
		BustRateLimit:      bustRateLimit(cfg.Server),
		StylesheetPath:     cfg.Stylesheet.Path,
		StylesheetDebounce: cfg.Stylesheet.Debounce,
		ImageWorkers:       cfg.Images.Workers,
		ImageQueueSize:     cfg.Images.QueueSize,
		Publish:            publishOptions(cfg.Images),
		Transcoder:         newTranscoder(cfg.Images),
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        cfg.Server.IdleTimeout,
		MetricsToken:       cfg.Server.MetricsToken,
		Logger:             logger,
	}
}

// bustRateLimit returns nil, leaving the cache-bust route unlimited, unless
// a positive rate is configured.
func bustRateLimit(sc config.ServerConfig) *middleware.RateLimitConfig {
	if sc.BustRate <= 0 {
		return nil
	}
	return &middleware.RateLimitConfig{
		RequestsPerSecond: sc.BustRate,
		Burst:             sc.BustBurst,
		PerIP:             true,
	}
}

// tlsSettings returns nil for plain HTTP. Certificate files take precedence
// over a generated self-signed certificate.
func tlsSettings(sc config.ServerConfig) (*adapters.TLSConfig, error) {
	switch {
	case sc.TLSCert != "" && sc.TLSKey != "":
		return adapters.NewTLSConfig().WithCertFiles(sc.TLSCert, sc.TLSKey), nil
	case sc.SelfSigned:
		certPEM, keyPEM, err := adapters.SelfSignedCert(sc.Host, "localhost")
		if err != nil {
			return nil, err
		}
		return adapters.NewTLSConfig().WithCertPEM(certPEM, keyPEM), nil
	default:
		return nil, nil
	}
}

func imagesRoot(cfg *config.Config) string {
	return filepath.Join(cfg.Server.Root, common.DefaultAssetRoot, "images")
}
