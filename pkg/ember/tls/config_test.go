package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = 0x%x, want TLS 1.2", cfg.MinVersion)
	}
	if cfg.MaxVersion != tls.VersionTLS13 {
		t.Errorf("MaxVersion = 0x%x, want TLS 1.3", cfg.MaxVersion)
	}
	if len(cfg.CipherSuites) == 0 {
		t.Error("expected default cipher suites to be set")
	}
	if len(cfg.NextProtos) != 1 || cfg.NextProtos[0] != "http/1.1" {
		t.Errorf("NextProtos = %v, want [http/1.1]", cfg.NextProtos)
	}
}

func TestBuildRequiresCertFiles(t *testing.T) {
	_, err := NewConfig().Build()
	if err == nil {
		t.Fatal("expected Build to fail without a certificate/key pair")
	}
}

func TestBuildLoadsCertificate(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedCert(t, dir)

	tlsConfig, err := NewConfig().WithCert(certPath, keyPath).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tlsConfig.Certificates) != 1 {
		t.Fatalf("expected one loaded certificate, got %d", len(tlsConfig.Certificates))
	}
}

func TestManualTLSShorthand(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedCert(t, dir)

	tlsConfig, err := ManualTLS(certPath, keyPath)
	if err != nil {
		t.Fatalf("ManualTLS: %v", err)
	}
	if tlsConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("expected ManualTLS to apply secure defaults")
	}
}

func TestWithClientAuth(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedCert(t, dir)

	tlsConfig, err := NewConfig().WithCert(certPath, keyPath).WithClientAuth(tls.RequireAndVerifyClientCert).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tlsConfig.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("ClientAuth = %v, want RequireAndVerifyClientCert", tlsConfig.ClientAuth)
	}
}

// writeSelfSignedCert generates a throwaway ECDSA certificate/key pair
// for Build tests, grounded on the teacher's cert_test.go key-generation
// style (ecdsa256 case) minus the ACME-specific CSR/account-key paths
// this package no longer carries.
func writeSelfSignedCert(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")

	certOut, err := os.Create(certPath)
	if err != nil {
		t.Fatalf("create cert file: %v", err)
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		t.Fatalf("encode cert: %v", err)
	}

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	keyOut, err := os.Create(keyPath)
	if err != nil {
		t.Fatalf("create key file: %v", err)
	}
	defer keyOut.Close()
	if err := pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}); err != nil {
		t.Fatalf("encode key: %v", err)
	}

	return certPath, keyPath
}
