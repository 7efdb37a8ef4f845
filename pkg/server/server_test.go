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
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-lightpages/pkg/adapters"
	"github.com/jeremyhahn/go-lightpages/pkg/common"
	"github.com/jeremyhahn/go-lightpages/pkg/memory"
	"github.com/jeremyhahn/go-lightpages/pkg/server/middleware"
	"github.com/jeremyhahn/go-lightpages/pkg/transcode"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// copyTranscoder writes a fake derivative next to the input.
type copyTranscoder struct{}

func (copyTranscoder) Convert(_ context.Context, input string) (string, error) {
	if !transcode.IsSupported(input) {
		return "", transcode.ErrUnsupportedFormat
	}
	out := transcode.OutputPath(input)
	return out, os.WriteFile(out, []byte("webp"), 0o600)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newTestServer(t *testing.T, store common.ObjectStore, mutate func(cfg *Config)) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "public", "css", "style.css"), "body{color:red}")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "public", "images"), 0o750))

	cfg := &Config{
		Root:               root,
		Host:               "127.0.0.1",
		StylesheetDebounce: 20 * time.Millisecond,
		Transcoder:         copyTranscoder{},
		Logger:             adapters.NewNoOpLogger(),
	}
	if mutate != nil {
		mutate(cfg)
	}

	s, err := New(cfg, store)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, root
}

func get(s *Server, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestNew_LoadsStylesheet(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	assert.Equal(t, "body{color:red}", s.PageCSS())
}

func TestNew_MissingStylesheet(t *testing.T) {
	s, err := New(&Config{
		Root:       t.TempDir(),
		Transcoder: copyTranscoder{},
		Logger:     adapters.NewNoOpLogger(),
	}, nil)
	require.NoError(t, err)
	defer func() { _ = s.Shutdown(context.Background()) }()

	assert.Equal(t, "", s.PageCSS())

	w := get(s, "/css/cache/bust")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK!", w.Body.String())
	assert.Equal(t, "", s.PageCSS())
}

func TestNew_PicksUpAssetsCreatedAfterStart(t *testing.T) {
	store := memory.NewMemory()
	root := t.TempDir()

	s, err := New(&Config{
		Root:               root,
		StylesheetDebounce: 20 * time.Millisecond,
		Transcoder:         copyTranscoder{},
		Logger:             adapters.NewNoOpLogger(),
	}, store)
	require.NoError(t, err)
	defer func() { _ = s.Shutdown(context.Background()) }()

	select {
	case <-s.Images().SweepDone():
	case <-time.After(5 * time.Second):
		t.Fatal("initial sweep did not finish")
	}

	writeFile(t, filepath.Join(root, "public", "images", "late.png"), "png")
	writeFile(t, filepath.Join(root, "public", "css", "style.css"), "body{margin:0}")

	assert.Eventually(t, func() bool {
		keys := store.Keys()
		return len(keys) == 2 && keys[0] == "images/late.png" && keys[1] == "images/late.webp"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool {
		return s.PageCSS() == "body{margin:0}"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNew_InvalidProxyURL(t *testing.T) {
	_, err := New(&Config{
		Root:    t.TempDir(),
		SGTMURL: "not a url",
		Logger:  adapters.NewNoOpLogger(),
	}, nil)
	require.Error(t, err)
}

func TestCacheBust(t *testing.T) {
	s, root := newTestServer(t, nil, nil)
	path := filepath.Join(root, "public", "css", "style.css")

	writeFile(t, path, "body{color:blue}")
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	w := get(s, "/css/cache/bust")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK!", w.Body.String())
	assert.Equal(t, "body{color:blue}", s.PageCSS())

	m := get(s, "/metrics")
	assert.Equal(t, http.StatusOK, m.Code)
	assert.Contains(t, m.Body.String(), `lightpages_stylesheet_refreshes_total{trigger="bust"} 1`)
}

func TestCacheBust_UnlimitedByDefault(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	for i := 0; i < 50; i++ {
		w := get(s, "/css/cache/bust")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		require.Equal(t, "OK!", w.Body.String())
	}
}

func TestCacheBust_RateLimited(t *testing.T) {
	s, _ := newTestServer(t, nil, func(cfg *Config) {
		cfg.BustRateLimit = &middleware.RateLimitConfig{
			RequestsPerSecond: 0.001,
			Burst:             1,
			PerIP:             true,
		}
	})

	assert.Equal(t, http.StatusOK, get(s, "/css/cache/bust").Code)
	w := get(s, "/css/cache/bust")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Other routes are not limited.
	assert.Equal(t, http.StatusOK, get(s, "/healthz").Code)
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t, nil, func(cfg *Config) {
		cfg.ScriptSources = []string{"https://js.example.com"}
		cfg.ImgSources = []string{"https://img.example.com"}
	})

	w := get(s, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	csp := w.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "default-src 'self'")
	assert.Contains(t, csp, "script-src 'self' 'unsafe-inline' https://js.example.com")
	assert.Contains(t, csp, "img-src 'self' data: https://img.example.com")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	w := get(s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"cdn":false`)
	assert.Contains(t, w.Body.String(), `"remote_store":false`)
}

func TestCDNRedirects(t *testing.T) {
	s, root := newTestServer(t, nil, func(cfg *Config) {
		cfg.CDNBaseURL = "https://cdn.example.com/"
	})
	writeFile(t, filepath.Join(root, "public", "favicon.ico"), "icon")
	writeFile(t, filepath.Join(root, "public", "about"), "about page")

	tests := []struct {
		name     string
		target   string
		code     int
		location string
	}{
		{"cdn prefix", "/cdn/images/a.png", http.StatusFound, "https://cdn.example.com/images/a.png"},
		{"cdn prefix without extension", "/cdn/fonts/inter", http.StatusFound, "https://cdn.example.com/fonts/inter"},
		{"file extension", "/images/a.png", http.StatusFound, "https://cdn.example.com/images/a.png"},
		{"file extension with query", "/css/style.css?v=2", http.StatusFound, "https://cdn.example.com/css/style.css?v=2"},
		{"ico served locally", "/favicon.ico", http.StatusOK, ""},
		{"no extension served locally", "/about", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(s, tt.target)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
		})
	}
}

func TestStaticFiles_WithoutCDN(t *testing.T) {
	s, root := newTestServer(t, nil, nil)
	writeFile(t, filepath.Join(root, "public", "js", "app.js"), "console.log(1)")

	w := get(s, "/js/app.js")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())

	assert.Equal(t, http.StatusNotFound, get(s, "/missing.txt").Code)
	assert.Equal(t, http.StatusNotFound, get(s, "/cdn/images/a.png").Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/js/app.js", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompression(t *testing.T) {
	s, root := newTestServer(t, nil, nil)
	writeFile(t, filepath.Join(root, "public", "big.txt"), strings.Repeat("lightpages ", 500))

	req := httptest.NewRequest(http.MethodGet, "/big.txt", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	req = httptest.NewRequest(http.MethodGet, "/css/cache/bust", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "OK!", w.Body.String())
}

func TestProxyPassthrough(t *testing.T) {
	var gotPath, gotQuery, gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	s, _ := newTestServer(t, nil, func(cfg *Config) {
		cfg.SGTMURL = upstream.URL
	})

	req := httptest.NewRequest(http.MethodPost, "/s-g-t-m/g/collect?v=2", strings.NewReader("payload"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "/g/collect", gotPath)
	assert.Equal(t, "v=2", gotQuery)
	assert.Equal(t, "payload", gotBody)
}

func TestProxyDisabledWithoutURL(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/s-g-t-m/g/collect", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPageAndRender(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "public", "css", "style.css"), "body{color:red}")
	writeFile(t, filepath.Join(root, "views", "index.html"),
		`{{if .dev}}[dev]{{end}}<style>{{.css}}</style><h1>{{.title}}</h1>`)

	for _, production := range []bool{false, true} {
		t.Run("production="+strconv.FormatBool(production), func(t *testing.T) {
			s, err := New(&Config{
				Root:       root,
				Production: production,
				Transcoder: copyTranscoder{},
				Logger:     adapters.NewNoOpLogger(),
			}, nil)
			require.NoError(t, err)
			defer func() { _ = s.Shutdown(context.Background()) }()

			s.Page("/", func(c *gin.Context) {
				s.Render(c, "index.html", gin.H{"title": "Home"})
			})

			w := get(s, "/")
			require.Equal(t, http.StatusOK, w.Code)
			body := w.Body.String()
			assert.Contains(t, body, "<style>body{color:red}</style>")
			assert.Contains(t, body, "<h1>Home</h1>")
			assert.Equal(t, !production, strings.Contains(body, "[dev]"))
		})
	}
	gin.SetMode(gin.TestMode)
}

func TestRender_WithoutViews(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	s.Page("/home", func(c *gin.Context) {
		s.Render(c, "index.html", nil)
	})
	assert.Equal(t, http.StatusInternalServerError, get(s, "/home").Code)
}

func TestImagePipeline_PublishesOnStartup(t *testing.T) {
	store := memory.NewMemory()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "public", "images", "logo.png"), "png")
	writeFile(t, filepath.Join(root, "public", "images", "notes.txt"), "text")

	s, err := New(&Config{
		Root:       root,
		Transcoder: copyTranscoder{},
		Logger:     adapters.NewNoOpLogger(),
	}, store)
	require.NoError(t, err)
	defer func() { _ = s.Shutdown(context.Background()) }()

	assert.Eventually(t, func() bool {
		keys := store.Keys()
		return len(keys) == 2 && keys[0] == "images/logo.png" && keys[1] == "images/logo.webp"
	}, 5*time.Second, 20*time.Millisecond)

	w := get(s, "/healthz")
	assert.Contains(t, w.Body.String(), `"remote_store":true`)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestStart_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s, _ := newTestServer(t, nil, func(cfg *Config) {
		cfg.Port = ln.Addr().(*net.TCPAddr).Port
	})

	err = s.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrListenBind)
}

func TestStartAndShutdown(t *testing.T) {
	port := freePort(t)
	s, _ := newTestServer(t, nil, func(cfg *Config) {
		cfg.Port = port
	})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/css/cache/bust"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) // #nosec G107 -- test server
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}

func TestMetrics_Token(t *testing.T) {
	s, _ := newTestServer(t, nil, func(cfg *Config) {
		cfg.MetricsToken = "s3cret"
	})

	assert.Equal(t, http.StatusUnauthorized, get(s, "/metrics").Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_InvalidTLS(t *testing.T) {
	_, err := New(&Config{
		Root:   t.TempDir(),
		TLS:    adapters.NewTLSConfig().WithCertPEM([]byte("cert"), []byte("key")),
		Logger: adapters.NewNoOpLogger(),
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapters.ErrInvalidCertificate)
}

func TestStart_TLS(t *testing.T) {
	certPEM, keyPEM, err := adapters.SelfSignedCert()
	require.NoError(t, err)

	port := freePort(t)
	s, _ := newTestServer(t, nil, func(cfg *Config) {
		cfg.Port = port
		cfg.TLS = adapters.NewTLSConfig().WithCertPEM(certPEM, keyPEM)
	})
	go func() { _ = s.Start() }()

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- self-signed test certificate
	}}
	url := "https://127.0.0.1:" + strconv.Itoa(port) + "/healthz"

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get(url)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Strict-Transport-Security"), "max-age=15552000")
}
