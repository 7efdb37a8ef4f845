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
	"context"
	"html/template"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
)

// ViewsDir holds the page templates, relative to the project root.
const ViewsDir = "views"

// loadViews parses views/*.html when any exist.
func (s *Server) loadViews() {
	pattern := filepath.Join(s.resolve(ViewsDir), "*.html")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		s.logger.Debug(context.Background(), "No views found",
			adapters.Field{Key: "pattern", Value: pattern})
		return
	}
	s.router.LoadHTMLFiles(matches...)
	s.viewsLoaded = true
}

// Page registers a GET route for a page.
func (s *Server) Page(url string, handlers ...gin.HandlerFunc) {
	s.router.GET(url, handlers...)
}

// PageCSS returns the cached stylesheet.
func (s *Server) PageCSS() string {
	return s.css.Get()
}

// Render executes the named view with data merged over the default
// context: dev is true outside production and css holds the cached
// stylesheet.
func (s *Server) Render(c *gin.Context, name string, data gin.H) {
	if !s.viewsLoaded {
		s.logger.Error(c.Request.Context(), "Render called without views",
			adapters.Field{Key: "view", Value: name})
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	ctx := gin.H{
		"dev": !s.config.Production,
		"css": template.CSS(s.css.Get()), // #nosec G203 -- stylesheet is a trusted project file
	}
	for k, v := range data {
		ctx[k] = v
	}
	c.HTML(http.StatusOK, name, ctx)
}
