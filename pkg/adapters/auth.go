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

package adapters

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized is returned when authentication fails.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMissingCredentials is returned when required credentials are missing.
	ErrMissingCredentials = errors.New("missing credentials")
)

// Principal represents an authenticated caller.
type Principal struct {
	// ID is the unique identifier for this principal.
	ID string

	// Type indicates the principal type (e.g., "token", "anonymous").
	Type string
}

// Authenticator guards operational endpoints such as /metrics.
type Authenticator interface {
	// AuthenticateHTTP authenticates an HTTP request and returns the authenticated principal.
	// Returns ErrUnauthorized or ErrMissingCredentials if authentication fails.
	AuthenticateHTTP(ctx context.Context, req *http.Request) (*Principal, error)
}

// NoOpAuthenticator is an authenticator that allows all requests (no authentication).
type NoOpAuthenticator struct{}

// NewNoOpAuthenticator creates a new no-op authenticator.
func NewNoOpAuthenticator() *NoOpAuthenticator {
	return &NoOpAuthenticator{}
}

// AuthenticateHTTP allows all HTTP requests.
func (a *NoOpAuthenticator) AuthenticateHTTP(ctx context.Context, req *http.Request) (*Principal, error) {
	return &Principal{ID: "anonymous", Type: "anonymous"}, nil
}

// BearerTokenAuthenticator accepts requests carrying one static bearer token.
type BearerTokenAuthenticator struct {
	token []byte
}

// NewBearerTokenAuthenticator returns an authenticator for token, or a
// NoOpAuthenticator when token is empty.
func NewBearerTokenAuthenticator(token string) Authenticator {
	if token == "" {
		return NewNoOpAuthenticator()
	}
	return &BearerTokenAuthenticator{token: []byte(token)}
}

// AuthenticateHTTP authenticates using the Authorization header.
func (a *BearerTokenAuthenticator) AuthenticateHTTP(ctx context.Context, req *http.Request) (*Principal, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingCredentials
	}
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return nil, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(header[len(prefix):]), a.token) != 1 {
		return nil, ErrUnauthorized
	}
	return &Principal{ID: "token", Type: "token"}, nil
}
