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

// Package transcode converts raster images into WebP derivatives.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default conversion settings.
const (
	DefaultBinary  = "cwebp"
	DefaultQuality = 80
	DefaultTimeout = 60 * time.Second

	// DerivativeExt is the extension of every produced file.
	DerivativeExt = ".webp"
)

// ErrUnsupportedFormat is returned for inputs that are not convertible
// raster images.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var supportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// IsSupported reports whether path has a convertible raster extension.
// The comparison is case-insensitive.
func IsSupported(path string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}

// OutputPath returns the derivative path for input: the same path with its
// final extension replaced by DerivativeExt.
func OutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + DerivativeExt
}

// ConvertError describes a failed conversion.
type ConvertError struct {
	Input  string
	Output string
	Err    error
}

func (e *ConvertError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("convert %s: %v: %s", e.Input, e.Err, e.Output)
	}
	return fmt.Sprintf("convert %s: %v", e.Input, e.Err)
}

func (e *ConvertError) Unwrap() error {
	return e.Err
}

// CWebP converts images by running the cwebp encoder.
type CWebP struct {
	// Binary is the cwebp executable name or path (default: "cwebp")
	Binary string

	// Quality is the lossy compression factor, 0-100 (default: 80)
	Quality int

	// Timeout bounds a single conversion (default: 60s)
	Timeout time.Duration
}

// NewCWebP returns a CWebP with default settings.
func NewCWebP() *CWebP {
	return &CWebP{
		Binary:  DefaultBinary,
		Quality: DefaultQuality,
		Timeout: DefaultTimeout,
	}
}

// Convert writes the WebP derivative of input next to it and returns the
// derivative's path.
func (c *CWebP) Convert(ctx context.Context, input string) (string, error) {
	if !IsSupported(input) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, input)
	}

	binary := c.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output := OutputPath(input)
	// #nosec G204 -- binary is operator configuration, paths come from the watched tree
	cmd := exec.CommandContext(ctx, binary, "-quiet", "-q", strconv.Itoa(quality), input, "-o", output)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &ConvertError{
			Input:  input,
			Output: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return output, nil
}
