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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/jeremyhahn/go-lightpages/pkg/config"
)

var (
	cfgFile      string
	globalConfig *config.Config
	logger       adapters.Logger = adapters.NewDefaultLogger()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lightpages",
	Short: "A small web server with stylesheet caching and a WebP image pipeline",
	Long: `lightpages serves a site from a project directory:

  public/            static files, served for any unmatched GET
  public/css/style.css
                     cached in memory and reloaded when it changes
  public/images/**   converted to WebP and mirrored, with the original,
                     to the configured object store
  views/*.html       page templates

Supported Storage Backends:
  - spaces     : DigitalOcean Spaces (default)
  - s3         : AWS S3
  - minio      : MinIO (S3-compatible)
  - gcs        : Google Cloud Storage
  - azure      : Azure Blob Storage
  - local      : Local directory mirror
  - memory     : In-memory (testing)

Configuration can be provided via:
  - Command-line flags (highest priority)
  - Environment variables (LIGHTPAGES_*, plus PORT, NODE_ENV, SGTM_URL and CDN_*)
  - A .env file in the project root
  - Configuration file (./lightpages.yaml)
  - Default values (lowest priority)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.LoadOptions{
			ConfigFile: cfgFile,
			Flags:      cmd.Flags(),
		})
		if err != nil {
			return err
		}
		globalConfig = cfg
		logger = adapters.NewLogger(adapters.LoggerConfig{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./lightpages.yaml)")
	rootCmd.PersistentFlags().String("root", ".", "project root containing public/ and views/")
	rootCmd.PersistentFlags().String("backend", "spaces", "object store backend (spaces, s3, minio, gcs, azure, local, memory)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")

	serveCmd.Flags().String("host", "0.0.0.0", "interface to bind")
	serveCmd.Flags().Int("port", 8000, "port to listen on")
	serveCmd.Flags().Bool("production", false, "production mode")
	serveCmd.Flags().String("tls-cert", "", "TLS certificate file")
	serveCmd.Flags().String("tls-key", "", "TLS private key file")
	serveCmd.Flags().Bool("self-signed", false, "serve HTTPS with a generated self-signed certificate")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionCmd)
}
