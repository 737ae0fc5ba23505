// Package tls builds the *crypto/tls.Config an acceptor uses as its TLS
// socket factory (spec §6's "server socket factory (plain or TLS)").
// Certificate acquisition/renewal (ACME et al.) is an explicit Non-goal;
// this package only loads certificates the caller already holds on disk.
package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
)

// Config builds a *tls.Config from a certificate/key file pair plus the
// handful of hardening knobs worth exposing. Grounded on the teacher's
// tls/config.go builder API, trimmed of its CertificateManager/AutoCert
// path (Let's Encrypt client, renewal loop) — see DESIGN.md.
type Config struct {
	CertFile string
	KeyFile  string

	MinVersion   uint16
	MaxVersion   uint16
	CipherSuites []uint16
	ClientAuth   tls.ClientAuthType
	NextProtos   []string
}

// defaultCipherSuites are TLS 1.2 suites with perfect forward secrecy;
// TLS 1.3's suites are fixed by the standard library and not configurable.
var defaultCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// NewConfig returns a Config with secure defaults (TLS 1.2 floor, modern
// cipher suites, HTTP/1.1-only ALPN).
func NewConfig() *Config {
	return &Config{
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS13,
		CipherSuites: defaultCipherSuites,
		NextProtos:   []string{"http/1.1"},
	}
}

// WithCert sets the certificate/key file pair to load.
func (c *Config) WithCert(certFile, keyFile string) *Config {
	c.CertFile = certFile
	c.KeyFile = keyFile
	return c
}

// WithClientAuth enables client certificate authentication.
func (c *Config) WithClientAuth(authType tls.ClientAuthType) *Config {
	c.ClientAuth = authType
	return c
}

// Build loads the configured certificate and returns the resulting
// *tls.Config for use as an acceptor's socket factory.
func (c *Config) Build() (*tls.Config, error) {
	if c.CertFile == "" || c.KeyFile == "" {
		return nil, errors.New("ember/tls: certificate and key files are required")
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("ember/tls: load certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   c.MinVersion,
		MaxVersion:   c.MaxVersion,
		CipherSuites: c.CipherSuites,
		ClientAuth:   c.ClientAuth,
		NextProtos:   c.NextProtos,
	}, nil
}

// ManualTLS is a shorthand for NewConfig().WithCert(certFile, keyFile).Build().
func ManualTLS(certFile, keyFile string) (*tls.Config, error) {
	return NewConfig().WithCert(certFile, keyFile).Build()
}
