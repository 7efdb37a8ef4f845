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

package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// CSPDirectives lists the extra origins allowed per directive on top of
// 'self'.
type CSPDirectives struct {
	ScriptSources  []string
	ImgSources     []string
	ConnectSources []string
}

// Policy renders the Content-Security-Policy header value. Inline scripts
// are allowed and images may use data: URIs.
func (d CSPDirectives) Policy() string {
	parts := []string{"default-src 'self'"}
	parts = append(parts, directive("script-src", []string{"'self'", "'unsafe-inline'"}, d.ScriptSources))
	parts = append(parts, directive("img-src", []string{"'self'", "data:"}, d.ImgSources))
	parts = append(parts, directive("connect-src", []string{"'self'"}, d.ConnectSources))
	return strings.Join(parts, "; ")
}

func directive(name string, base, extra []string) string {
	seen := make(map[string]bool, len(base)+len(extra))
	values := make([]string, 0, len(base)+len(extra))
	for _, v := range append(append([]string{}, base...), extra...) {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return name + " " + strings.Join(values, " ")
}

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	// EnableHSTS enables HTTP Strict Transport Security
	EnableHSTS bool

	// HSTSMaxAge is the max-age for HSTS header (default: 31536000 = 1 year)
	HSTSMaxAge int

	// HSTSIncludeSubdomains includes subdomains in HSTS
	HSTSIncludeSubdomains bool

	// ContentSecurityPolicy sets the CSP header
	ContentSecurityPolicy string

	// XFrameOptions sets the X-Frame-Options header (default: "SAMEORIGIN")
	XFrameOptions string

	// XContentTypeOptions sets the X-Content-Type-Options header (default: "nosniff")
	XContentTypeOptions string

	// ReferrerPolicy sets the Referrer-Policy header (default: "no-referrer")
	ReferrerPolicy string

	// CrossOriginOpenerPolicy sets the Cross-Origin-Opener-Policy header (default: "same-origin")
	CrossOriginOpenerPolicy string
}

// DefaultSecurityHeadersConfig returns security headers config with sensible defaults
func DefaultSecurityHeadersConfig() *SecurityHeadersConfig {
	return &SecurityHeadersConfig{
		EnableHSTS:              true,
		HSTSMaxAge:              15552000,
		HSTSIncludeSubdomains:   true,
		ContentSecurityPolicy:   CSPDirectives{}.Policy(),
		XFrameOptions:           "SAMEORIGIN",
		XContentTypeOptions:     "nosniff",
		ReferrerPolicy:          "no-referrer",
		CrossOriginOpenerPolicy: "same-origin",
	}
}

// SecurityHeadersMiddleware creates a Gin middleware that sets security headers
func SecurityHeadersMiddleware(config *SecurityHeadersConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultSecurityHeadersConfig()
	}

	headers := map[string]string{
		"Content-Security-Policy":    config.ContentSecurityPolicy,
		"X-Frame-Options":            config.XFrameOptions,
		"X-Content-Type-Options":     config.XContentTypeOptions,
		"Referrer-Policy":            config.ReferrerPolicy,
		"Cross-Origin-Opener-Policy": config.CrossOriginOpenerPolicy,
	}
	hsts := formatHSTSHeader(config)

	return func(c *gin.Context) {
		for name, value := range headers {
			if value != "" {
				c.Header(name, value)
			}
		}

		// Only over TLS; browsers ignore it on plain HTTP.
		if config.EnableHSTS && hsts != "" && c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", hsts)
		}

		c.Next()
	}
}

// formatHSTSHeader formats the HSTS header value
func formatHSTSHeader(config *SecurityHeadersConfig) string {
	if config.HSTSMaxAge <= 0 {
		return ""
	}
	value := fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
	if config.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}
