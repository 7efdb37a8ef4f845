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
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
)

// RateLimitConfig limits how often a route may be hit.
type RateLimitConfig struct {
	// RequestsPerSecond is the steady refill rate
	RequestsPerSecond float64

	// Burst is the bucket size
	Burst int

	// PerIP keeps one bucket per client address instead of one shared bucket
	PerIP bool

	// IdleTTL drops a client's bucket after this long without requests
	// (default: 10m). Only used with PerIP.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns the limits used when RateLimitMiddleware
// is given a nil config.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond: 5,
		Burst:             10,
		PerIP:             true,
		IdleTTL:           10 * time.Minute,
	}
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type buckets struct {
	cfg       RateLimitConfig
	shared    *rate.Limiter
	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
	now       func() time.Time
}

func newBuckets(config *RateLimitConfig) *buckets {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	cfg := *config
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	b := &buckets{
		cfg:     cfg,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
	if !cfg.PerIP {
		b.shared = b.newLimiter()
	}
	return b
}

func (b *buckets) newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(b.cfg.RequestsPerSecond), b.cfg.Burst)
}

func (b *buckets) allow(clientIP string) bool {
	if b.shared != nil {
		return b.shared.Allow()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastSweep) >= b.cfg.IdleTTL {
		for ip, cb := range b.clients {
			if now.Sub(cb.lastSeen) >= b.cfg.IdleTTL {
				delete(b.clients, ip)
			}
		}
		b.lastSweep = now
	}

	cb, ok := b.clients[clientIP]
	if !ok {
		cb = &clientBucket{limiter: b.newLimiter()}
		b.clients[clientIP] = cb
	}
	cb.lastSeen = now
	return cb.limiter.AllowN(now, 1)
}

func (b *buckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// RateLimitMiddleware rejects requests over the limit with 429 and a
// Retry-After hint.
func RateLimitMiddleware(config *RateLimitConfig, logger adapters.Logger) gin.HandlerFunc {
	return rateLimit(newBuckets(config), adapters.OrNoOp(logger))
}

func rateLimit(b *buckets, logger adapters.Logger) gin.HandlerFunc {
	limit := strconv.FormatFloat(b.cfg.RequestsPerSecond, 'f', -1, 64)
	burst := strconv.Itoa(b.cfg.Burst)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if b.allow(clientIP) {
			c.Next()
			return
		}

		logger.Warn(c.Request.Context(), "Rate limit exceeded",
			adapters.Field{Key: "client_ip", Value: clientIP},
			adapters.Field{Key: "path", Value: c.Request.URL.Path})
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Burst", burst)
		c.Header("Retry-After", "1")
		c.String(http.StatusTooManyRequests, "Too many requests")
		c.Abort()
	}
}
