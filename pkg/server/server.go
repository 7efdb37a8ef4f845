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

// Package server is the site's HTTP shell: security headers, compression,
// views, static files, CDN redirects and the tag-manager passthrough, plus
// the background workers that keep the stylesheet cache and the image
// bucket current.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/jeremyhahn/go-lightpages/pkg/common"
	"github.com/jeremyhahn/go-lightpages/pkg/metrics"
	"github.com/jeremyhahn/go-lightpages/pkg/pipeline"
	"github.com/jeremyhahn/go-lightpages/pkg/publisher"
	"github.com/jeremyhahn/go-lightpages/pkg/server/middleware"
	"github.com/jeremyhahn/go-lightpages/pkg/stylesheet"
)

var (
	// ErrListenBind is returned by Start when the listen address cannot be bound.
	ErrListenBind = errors.New("failed to bind listen address")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("server already started")
)

// Config holds server configuration
type Config struct {
	// Root is the project directory holding public/ and views/ (default: ".")
	Root string

	// Host is the hostname to bind to (default: "0.0.0.0")
	Host string

	// Port is the port to listen on (default: 8000)
	Port int

	// CDNBaseURL enables the CDN redirects when set
	CDNBaseURL string

	// ScriptSources, ImgSources and ConnectSources extend the CSP directives
	ScriptSources  []string
	ImgSources     []string
	ConnectSources []string

	// Production disables the dev flag passed to views
	Production bool

	// SGTMURL enables the /s-g-t-m passthrough when set
	SGTMURL string

	// CompressMinSize is the smallest response body that is compressed (default: 1024)
	CompressMinSize int

	// BustRateLimit limits the cache-bust route (default: nil = unlimited)
	BustRateLimit *middleware.RateLimitConfig

	// StylesheetPath is relative to Root (default: public/css/style.css)
	StylesheetPath string

	// StylesheetDebounce is the quiet period before a changed stylesheet is reloaded (default: 1s)
	StylesheetDebounce time.Duration

	// ImageWorkers and ImageQueueSize size the image pipeline (default: 1 and 256)
	ImageWorkers   int
	ImageQueueSize int

	// Publish selects the image publish and retract policies
	Publish publisher.Options

	// Transcoder overrides the cwebp transcoder
	Transcoder publisher.Transcoder

	// Registry receives the server's metrics (default: a private registry)
	Registry *prometheus.Registry

	// MetricsToken, when set, is required as a bearer token on /metrics
	MetricsToken string

	// TLS enables HTTPS when it carries a certificate (default: nil = plain HTTP)
	TLS *adapters.TLSConfig

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Logger is the pluggable logger adapter (default: DefaultLogger)
	Logger adapters.Logger
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Root:            ".",
		Host:            DefaultHost,
		Port:            DefaultPort,
		CompressMinSize: middleware.DefaultCompressMinSize,
		StylesheetPath:  stylesheet.DefaultPath,
		ImageWorkers:    pipeline.DefaultWorkers,
		ImageQueueSize:  pipeline.DefaultQueueSize,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		Logger:          adapters.NewDefaultLogger(),
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Root == "" {
		c.Root = d.Root
	}
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.CompressMinSize <= 0 {
		c.CompressMinSize = d.CompressMinSize
	}
	if c.StylesheetPath == "" {
		c.StylesheetPath = d.StylesheetPath
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}
	c.CDNBaseURL = strings.TrimRight(c.CDNBaseURL, "/")
}

// Server serves the site and owns its background workers.
type Server struct {
	config      *Config
	logger      adapters.Logger
	router      *gin.Engine
	viewsLoaded bool
	handler     http.Handler
	httpServer  *http.Server

	css        *stylesheet.Cache
	cssWatcher *stylesheet.Watcher
	publisher  *publisher.Publisher
	images     *pipeline.Pipeline
	observer   *metrics.PrometheusObserver

	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
}

// New builds the server and starts its background workers in order: the
// stylesheet watcher, the image pipeline (subscription and initial sweep),
// then the first stylesheet load. store may be nil, in which case images
// are transcoded but nothing is uploaded.
func New(cfg *Config, store common.ObjectStore) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()

	var proxyTarget *url.URL
	if cfg.SGTMURL != "" {
		u, err := url.Parse(cfg.SGTMURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid SGTM URL %q", cfg.SGTMURL)
		}
		proxyTarget = u
	}

	observer, err := metrics.NewPrometheusObserver(metrics.DefaultNamespace, cfg.Registry)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   cfg,
		logger:   cfg.Logger,
		observer: observer,
	}

	s.css = stylesheet.NewCache(s.resolve(cfg.StylesheetPath), stylesheet.WithLogger(cfg.Logger))
	s.cssWatcher = stylesheet.NewWatcher(s.css, cfg.StylesheetDebounce, cfg.Logger)
	s.cssWatcher.OnRefresh(func(string) { observer.RecordStylesheetRefresh("watch") })

	s.publisher = publisher.New(publisher.Config{
		Store:      store,
		Transcoder: cfg.Transcoder,
		Logger:     cfg.Logger,
		Observer:   observer,
		Options:    cfg.Publish,
	})
	imagesRoot := s.resolve(filepath.Join(common.DefaultAssetRoot, "images"))
	s.images = pipeline.New(pipeline.Config{
		Root:      imagesRoot,
		Publisher: s.publisher,
		Workers:   cfg.ImageWorkers,
		QueueSize: cfg.ImageQueueSize,
		Logger:    cfg.Logger,
	})

	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupRoutes(proxyTarget)

	tlsConfig, err := cfg.TLS.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	handler, err := middleware.Compress(s.router, cfg.CompressMinSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create compression handler: %w", err)
	}
	s.handler = handler
	s.httpServer = &http.Server{
		Addr:           net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:        handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: MaxHeaderBytes,
		TLSConfig:      tlsConfig,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// Watches need existing directories; files created later are then seen.
	for _, dir := range []string{filepath.Dir(s.css.Path()), imagesRoot} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			s.logger.Warn(ctx, "Could not create watched directory",
				adapters.Field{Key: "dir", Value: dir}, adapters.Err(err))
		}
	}

	if err := s.cssWatcher.Start(); err != nil {
		s.logger.Warn(ctx, "Stylesheet watcher not started", adapters.Err(err))
	}
	if err := s.images.Start(ctx); err != nil {
		s.logger.Warn(ctx, "Image pipeline not started", adapters.Err(err))
	}
	s.css.Refresh()

	return s, nil
}

func (s *Server) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.config.Root, path)
}

// Start binds the listen address and serves until Shutdown. A bind failure
// is returned wrapped in ErrListenBind.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w %s: %v", ErrListenBind, s.httpServer.Addr, err)
	}
	s.listener = ln
	s.mu.Unlock()

	tlsEnabled := s.httpServer.TLSConfig != nil
	s.logger.Info(context.Background(), "Server listening",
		adapters.Field{Key: "address", Value: ln.Addr().String()},
		adapters.Field{Key: "tls", Value: tlsEnabled},
		adapters.Field{Key: "cdn", Value: s.config.CDNBaseURL != ""},
		adapters.Field{Key: "remote_store", Value: s.publisher.Remote()})

	if tlsEnabled {
		// Certificates come from TLSConfig, so the file arguments stay empty.
		err = s.httpServer.ServeTLS(ln, "", "")
	} else {
		err = s.httpServer.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the background workers and gracefully shuts down the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down server")
	s.cancel()
	s.images.Stop()
	cssErr := s.cssWatcher.Stop()
	return errors.Join(s.httpServer.Shutdown(ctx), cssErr)
}

// Router returns the underlying Gin router (useful for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Handler returns the root handler, including compression.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Address returns the bound address once started, otherwise the configured one.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Stylesheet returns the server's stylesheet cache.
func (s *Server) Stylesheet() *stylesheet.Cache {
	return s.css
}

// Images returns the image pipeline.
func (s *Server) Images() *pipeline.Pipeline {
	return s.images
}
