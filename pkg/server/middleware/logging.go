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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
)

// LoggingMiddleware logs incoming requests and their response times
func LoggingMiddleware(logger adapters.Logger) gin.HandlerFunc {
	logger = adapters.OrNoOp(logger)

	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		fields := []adapters.Field{
			{Key: "method", Value: c.Request.Method},
			{Key: "path", Value: c.Request.URL.Path},
			{Key: "status", Value: statusCode},
			{Key: "latency", Value: time.Since(startTime).String()},
			{Key: "client_ip", Value: c.ClientIP()},
		}
		if id := GetRequestIDFromContext(c.Request.Context()); id != "" {
			fields = append(fields, adapters.Field{Key: "request_id", Value: id})
		}

		ctx := c.Request.Context()
		switch {
		case statusCode >= 500:
			logger.Error(ctx, "HTTP request completed", fields...)
		case statusCode >= 400:
			logger.Warn(ctx, "HTTP request completed", fields...)
		default:
			logger.Info(ctx, "HTTP request completed", fields...)
		}
	}
}

// RecoveryMiddleware turns a handler panic into a 500 and logs it.
func RecoveryMiddleware(logger adapters.Logger) gin.HandlerFunc {
	logger = adapters.OrNoOp(logger)

	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error(c.Request.Context(), "Panic recovered",
			adapters.Field{Key: "panic", Value: recovered},
			adapters.Field{Key: "path", Value: c.Request.URL.Path})
		c.AbortWithStatus(500)
	})
}
