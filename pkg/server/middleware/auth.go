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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
)

// AuthenticationMiddleware rejects requests the authenticator does not accept.
func AuthenticationMiddleware(authenticator adapters.Authenticator, logger adapters.Logger) gin.HandlerFunc {
	logger = adapters.OrNoOp(logger)
	if authenticator == nil {
		authenticator = adapters.NewNoOpAuthenticator()
	}

	return func(c *gin.Context) {
		principal, err := authenticator.AuthenticateHTTP(c.Request.Context(), c.Request)
		if err != nil {
			logger.Warn(c.Request.Context(), "Authentication failed",
				adapters.Field{Key: "path", Value: c.Request.URL.Path},
				adapters.Field{Key: "client_ip", Value: c.ClientIP()},
				adapters.Err(err))
			c.Header("WWW-Authenticate", `Bearer realm="lightpages"`)
			c.String(http.StatusUnauthorized, "Unauthorized")
			c.Abort()
			return
		}

		c.Set("principal", principal)
		c.Next()
	}
}
