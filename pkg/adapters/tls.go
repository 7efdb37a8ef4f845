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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"time"
)

// ErrInvalidCertificate is returned when a certificate or key cannot be loaded.
var ErrInvalidCertificate = errors.New("invalid certificate")

// TLSConfig holds the server certificate for HTTPS.
type TLSConfig struct {
	// CertFile is the path to the server certificate file (PEM format).
	CertFile string

	// KeyFile is the path to the server private key file (PEM format).
	KeyFile string

	// CertPEM is the server certificate in PEM format (alternative to CertFile).
	CertPEM []byte

	// KeyPEM is the server private key in PEM format (alternative to KeyFile).
	KeyPEM []byte

	// MinVersion specifies the minimum TLS version (default: TLS 1.2).
	MinVersion uint16
}

// NewTLSConfig creates a TLS configuration with secure defaults.
func NewTLSConfig() *TLSConfig {
	return &TLSConfig{
		MinVersion: tls.VersionTLS12, // Secure default
	}
}

// WithCertFiles sets the server certificate and key from files.
func (c *TLSConfig) WithCertFiles(certFile, keyFile string) *TLSConfig {
	c.CertFile = certFile
	c.KeyFile = keyFile
	return c
}

// WithCertPEM sets the server certificate and key from PEM data.
func (c *TLSConfig) WithCertPEM(certPEM, keyPEM []byte) *TLSConfig {
	c.CertPEM = certPEM
	c.KeyPEM = keyPEM
	return c
}

// WithMinVersion sets the minimum TLS version.
func (c *TLSConfig) WithMinVersion(version uint16) *TLSConfig {
	c.MinVersion = version
	return c
}

// Enabled reports whether a certificate source is set.
func (c *TLSConfig) Enabled() bool {
	if c == nil {
		return false
	}
	return (len(c.CertPEM) > 0 && len(c.KeyPEM) > 0) || (c.CertFile != "" && c.KeyFile != "")
}

// Build creates a *tls.Config, or returns nil when TLS is not enabled.
func (c *TLSConfig) Build() (*tls.Config, error) {
	if !c.Enabled() {
		return nil, nil
	}

	var cert tls.Certificate
	var err error
	if len(c.CertPEM) > 0 && len(c.KeyPEM) > 0 {
		cert, err = tls.X509KeyPair(c.CertPEM, c.KeyPEM)
	} else {
		cert, err = tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	}
	if err != nil {
		return nil, errors.Join(ErrInvalidCertificate, err)
	}

	minVersion := c.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}
	return &tls.Config{
		MinVersion:   minVersion,
		Certificates: []tls.Certificate{cert},
	}, nil
}

// SelfSignedCert generates a one-year ECDSA certificate for hosts, for
// local development over HTTPS. Hosts may be names or IP addresses; with
// none, localhost and 127.0.0.1 are used.
func SelfSignedCert(hosts ...string) (certPEM, keyPEM []byte, err error) {
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1"}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"lightpages development"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, err
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}
