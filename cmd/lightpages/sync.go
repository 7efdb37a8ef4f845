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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/jeremyhahn/go-lightpages/pkg/common"
	"github.com/jeremyhahn/go-lightpages/pkg/config"
	"github.com/jeremyhahn/go-lightpages/pkg/publisher"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Transcode and upload every image under public/images once",
	Long: `Walk public/images, convert each supported image to WebP and upload the
original and the derivative to the configured object store. Nothing is
watched and no server is started.`,
	Example: `  lightpages sync
  lightpages sync --root ./site --backend local`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runSync(ctx, globalConfig, logger, nil)
	},
}

// runSync reconciles the image tree. store overrides the configured one
// when non-nil.
func runSync(ctx context.Context, cfg *config.Config, logger adapters.Logger, store common.ObjectStore) error {
	if store == nil {
		var err error
		if store, err = newStore(cfg.CDN, logger); err != nil {
			return err
		}
	}

	p := publisher.New(publisher.Config{
		Store:      store,
		Transcoder: newTranscoder(cfg.Images),
		Logger:     logger,
		Options:    publishOptions(cfg.Images),
	})

	root := imagesRoot(cfg)
	logger.Info(ctx, "Syncing images", adapters.Field{Key: "root", Value: root})
	return p.ReconcileTree(ctx, root)
}
