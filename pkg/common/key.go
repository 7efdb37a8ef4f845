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

package common

import (
	"fmt"
	"strings"
)

// DefaultAssetRoot is the path segment that marks the public asset root.
// Everything below it is mirrored to the bucket under the same relative path.
const DefaultAssetRoot = "public"

// MaxKeyLength is the maximum allowed length for object keys.
const MaxKeyLength = 1024

// AssetKey returns the bucket key for path relative to DefaultAssetRoot.
func AssetKey(path string) (string, error) {
	return AssetKeyFor(DefaultAssetRoot, path)
}

// AssetKeyFor strips everything up to and including the first path segment
// equal to root, normalizes separators to forward slashes and drops any
// leading slash. Publish and retract must both go through here so original,
// derivative and delete keys always agree.
func AssetKeyFor(root, path string) (string, error) {
	if root == "" {
		root = DefaultAssetRoot
	}
	normalized := strings.ReplaceAll(path, `\`, "/")

	segments := strings.Split(normalized, "/")
	for i, segment := range segments {
		if segment != root {
			continue
		}
		rest := make([]string, 0, len(segments)-i-1)
		for _, s := range segments[i+1:] {
			if s == "" || s == "." {
				continue
			}
			rest = append(rest, s)
		}
		key := strings.TrimPrefix(strings.Join(rest, "/"), "/")
		if err := ValidateKey(key); err != nil {
			return "", err
		}
		return key, nil
	}

	return "", fmt.Errorf("%w: %s", ErrOutsideAssetRoot, path)
}

// ValidationError represents a rejected object key.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidateKey rejects keys that are empty, too long, contain NUL or control
// characters, or escape their prefix with "..".
func ValidateKey(key string) error {
	if key == "" {
		return &ValidationError{Field: "key", Message: "key cannot be empty"}
	}
	if len(key) > MaxKeyLength {
		return &ValidationError{
			Field:   "key",
			Message: fmt.Sprintf("key length exceeds maximum of %d bytes", MaxKeyLength),
		}
	}
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '\x00':
			return &ValidationError{Field: "key", Message: "key cannot contain null bytes"}
		case '\n', '\r', '\t':
			return &ValidationError{
				Field:   "key",
				Message: fmt.Sprintf("key contains invalid character sequence: %q", string(key[i])),
			}
		}
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return &ValidationError{Field: "key", Message: "key cannot contain path traversal sequences (..)"}
		}
	}
	return nil
}
