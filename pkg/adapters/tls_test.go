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
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewTLSConfig(t *testing.T) {
	config := NewTLSConfig()

	if config.MinVersion != tls.VersionTLS12 {
		t.Errorf("Default MinVersion = %v, want TLS 1.2", config.MinVersion)
	}
	if config.Enabled() {
		t.Error("Default config should not be enabled")
	}
}

func TestTLSConfig_Build_Disabled(t *testing.T) {
	var nilConfig *TLSConfig
	for name, c := range map[string]*TLSConfig{"nil": nilConfig, "empty": NewTLSConfig()} {
		t.Run(name, func(t *testing.T) {
			cfg, err := c.Build()
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if cfg != nil {
				t.Error("Build() should return nil when disabled")
			}
		})
	}
}

func TestTLSConfig_Build_PEM(t *testing.T) {
	certPEM, keyPEM, err := SelfSignedCert()
	if err != nil {
		t.Fatalf("SelfSignedCert() error = %v", err)
	}

	cfg, err := NewTLSConfig().WithCertPEM(certPEM, keyPEM).WithMinVersion(tls.VersionTLS13).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("Certificates = %d, want 1", len(cfg.Certificates))
	}
	if cfg.MinVersion != tls.VersionTLS13 {
		t.Errorf("MinVersion = %v, want TLS 1.3", cfg.MinVersion)
	}
}

func TestTLSConfig_Build_Files(t *testing.T) {
	certPEM, keyPEM, err := SelfSignedCert("example.test")
	if err != nil {
		t.Fatalf("SelfSignedCert() error = %v", err)
	}
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewTLSConfig().WithCertFiles(certFile, keyFile).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %v, want TLS 1.2", cfg.MinVersion)
	}
}

func TestTLSConfig_Build_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		config *TLSConfig
	}{
		{"bad PEM", NewTLSConfig().WithCertPEM([]byte("cert"), []byte("key"))},
		{"missing files", NewTLSConfig().WithCertFiles("/nonexistent/cert.pem", "/nonexistent/key.pem")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.config.Build()
			if !errors.Is(err, ErrInvalidCertificate) {
				t.Errorf("Build() error = %v, want ErrInvalidCertificate", err)
			}
		})
	}
}

func TestSelfSignedCert_Hosts(t *testing.T) {
	certPEM, _, err := SelfSignedCert("example.test", "10.0.0.1")
	if err != nil {
		t.Fatalf("SelfSignedCert() error = %v", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		t.Fatal("certificate is not PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	if err := cert.VerifyHostname("example.test"); err != nil {
		t.Errorf("VerifyHostname(example.test) error = %v", err)
	}
	if err := cert.VerifyHostname("10.0.0.1"); err != nil {
		t.Errorf("VerifyHostname(10.0.0.1) error = %v", err)
	}
}
