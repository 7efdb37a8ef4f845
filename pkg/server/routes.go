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

package server

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/jeremyhahn/go-lightpages/pkg/common"
	"github.com/jeremyhahn/go-lightpages/pkg/server/middleware"
	"github.com/jeremyhahn/go-lightpages/pkg/version"
)

// fileExt matches a path ending in a file extension.
var fileExt = regexp.MustCompile(`\.\w+$`)

// setupRoutes installs middleware in the order recovery → request ID →
// security headers → logging → CDN redirect, then registers the routes.
func (s *Server) setupRoutes(proxyTarget *url.URL) {
	cfg := s.config
	r := s.router

	r.Use(middleware.RecoveryMiddleware(s.logger))
	r.Use(middleware.RequestIDMiddleware())

	security := middleware.DefaultSecurityHeadersConfig()
	security.ContentSecurityPolicy = middleware.CSPDirectives{
		ScriptSources:  cfg.ScriptSources,
		ImgSources:     cfg.ImgSources,
		ConnectSources: cfg.ConnectSources,
	}.Policy()
	r.Use(middleware.SecurityHeadersMiddleware(security))
	r.Use(middleware.LoggingMiddleware(s.logger))

	if cfg.CDNBaseURL != "" {
		r.Use(s.cdnExtensionRedirect())
	}

	s.loadViews()

	bust := []gin.HandlerFunc{s.handleCacheBust}
	if cfg.BustRateLimit != nil {
		bust = append([]gin.HandlerFunc{middleware.RateLimitMiddleware(cfg.BustRateLimit, s.logger)}, bust...)
	}
	r.GET("/css/cache/bust", bust...)
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics",
		middleware.AuthenticationMiddleware(adapters.NewBearerTokenAuthenticator(cfg.MetricsToken), s.logger),
		gin.WrapH(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))

	if cfg.CDNBaseURL != "" {
		r.GET(CDNPrefix+"/*path", s.handleCDN)
	}
	if proxyTarget != nil {
		r.Any(ProxyPrefix+"/*path", gin.WrapH(s.newProxy(proxyTarget)))
	}

	r.NoRoute(s.handleStatic(http.FileServer(http.Dir(s.resolve(common.DefaultAssetRoot)))))
}

// handleCacheBust forces a stylesheet refresh.
func (s *Server) handleCacheBust(c *gin.Context) {
	s.css.Refresh()
	s.observer.RecordStylesheetRefresh("bust")
	c.String(http.StatusOK, "OK!")
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"version":      version.Get(),
		"cdn":          s.config.CDNBaseURL != "",
		"remote_store": s.publisher.Remote(),
	})
}

// handleCDN redirects /cdn/<path> to <base>/<path>.
func (s *Server) handleCDN(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	c.Redirect(http.StatusFound, s.config.CDNBaseURL+"/"+path)
}

// cdnExtensionRedirect sends any request for a file, other than .ico, to
// the CDN. The /cdn and passthrough prefixes are left to their routes.
func (s *Server) cdnExtensionRedirect() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if !fileExt.MatchString(p) || strings.EqualFold(filepath.Ext(p), ".ico") ||
			hasPrefix(p, CDNPrefix) || hasPrefix(p, ProxyPrefix) {
			c.Next()
			return
		}
		c.Redirect(http.StatusFound, s.config.CDNBaseURL+c.Request.URL.RequestURI())
		c.Abort()
	}
}

func hasPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func (s *Server) newProxy(target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			path := strings.TrimPrefix(pr.In.URL.Path, ProxyPrefix)
			if path == "" {
				path = "/"
			}
			pr.Out.URL.Path = path
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Error(r.Context(), "Tag manager passthrough failed",
				adapters.Field{Key: "path", Value: r.URL.Path},
				adapters.Err(err))
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}

// handleStatic serves unmatched GET and HEAD requests from public/.
func (s *Server) handleStatic(files http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.String(http.StatusNotFound, "404 page not found")
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}
