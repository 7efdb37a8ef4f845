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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetKey(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"relative", "public/images/a.png", "images/a.png"},
		{"windows separators", `public\images\a.png`, "images/a.png"},
		{"leading slash", "/public/images/a.png", "images/a.png"},
		{"absolute project root", "/srv/site/public/images/2024/b.jpg", "images/2024/b.jpg"},
		{"windows absolute", `C:\site\public\images\c.gif`, "images/c.gif"},
		{"derivative", "/srv/site/public/images/photo.webp", "images/photo.webp"},
		{"first public segment wins", "/srv/public/images/public/x.png", "images/public/x.png"},
		{"segment match not substring", "/home/publicity/public/images/a.png", "images/a.png"},
		{"duplicate separators", "public//images///a.png", "images/a.png"},
		{"dot segments", "public/./images/a.png", "images/a.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AssetKey(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssetKey_SeparatorInvariant(t *testing.T) {
	a, err := AssetKey("public/images/a.png")
	require.NoError(t, err)
	b, err := AssetKey(`public\images\a.png`)
	require.NoError(t, err)
	c, err := AssetKey("/public/images/a.png")
	require.NoError(t, err)

	assert.Equal(t, "images/a.png", a)
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)

	again, err := AssetKey(a)
	assert.ErrorIs(t, err, ErrOutsideAssetRoot, "a key is not a local path")
	assert.Empty(t, again)
}

func TestAssetKey_Errors(t *testing.T) {
	_, err := AssetKey("/srv/site/static/a.png")
	assert.ErrorIs(t, err, ErrOutsideAssetRoot)

	_, err = AssetKey("/srv/site/public")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr), "root itself has no key")

	_, err = AssetKey("/srv/site/public/images/../../etc/passwd")
	assert.True(t, errors.As(err, &verr))
}

func TestAssetKeyFor_CustomRoot(t *testing.T) {
	got, err := AssetKeyFor("assets", "/srv/site/assets/img/a.png")
	require.NoError(t, err)
	assert.Equal(t, "img/a.png", got)

	got, err = AssetKeyFor("", "public/images/a.png")
	require.NoError(t, err)
	assert.Equal(t, "images/a.png", got)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", "images/a.png", false},
		{"valid dots in name", "images/a..b.png", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxKeyLength+1), true},
		{"null byte", "images/a\x00.png", true},
		{"newline", "images/a\n.png", true},
		{"traversal", "images/../a.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "modified", Modified.String())
	assert.Equal(t, "removed", Removed.String())
	assert.Equal(t, "EventKind(9)", EventKind(9).String())
}

func TestStoreErrors(t *testing.T) {
	cause := errors.New("access denied")

	uerr := &UploadError{Key: "images/a.png", Err: cause}
	assert.Equal(t, "upload images/a.png: access denied", uerr.Error())
	assert.ErrorIs(t, uerr, cause)

	derr := &DeleteError{Key: "images/a.png", Err: cause}
	assert.Equal(t, "delete images/a.png: access denied", derr.Error())
	assert.ErrorIs(t, derr, cause)
}
