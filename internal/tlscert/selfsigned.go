package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"time"

	"cms-graphql/internal/logging"
)

const (
	autoCertName = "server.crt"
	autoKeyName  = "server.key"

	autoCertLifetime = 365 * 24 * time.Hour
	// autoRenewBefore regenerates a certificate that would expire soon.
	autoRenewBefore = 7 * 24 * time.Hour
)

// autoManager keeps a self-signed pair in AutoCertDir, generating it when it
// is missing, near expiry, or issued for a different host set.
type autoManager struct {
	certPath string
	keyPath  string
}

func newAutoManager(cfg Config, logger *logging.Logger) (*autoManager, error) {
	if cfg.AutoCertDir == "" {
		return nil, fmt.Errorf("server.tls_auto_cert_dir is required when server.tls_mode=auto")
	}
	hosts := cfg.AutoHosts
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	if err := os.MkdirAll(cfg.AutoCertDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	m := &autoManager{
		certPath: filepath.Join(cfg.AutoCertDir, autoCertName),
		keyPath:  filepath.Join(cfg.AutoCertDir, autoKeyName),
	}

	reason := m.staleReason(hosts, time.Now())
	if reason == "" {
		logger.Info("using existing self-signed certificate", slog.String("cert_path", m.certPath))
		return m, nil
	}

	logger.Info("generating self-signed certificate",
		slog.String("reason", reason),
		slog.String("cert_path", m.certPath),
		slog.Any("hosts", hosts))
	if err := writeSelfSigned(m.certPath, m.keyPath, hosts, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}
	logger.Warn("self-signed certificate in use; not suitable for production", slog.String("cert_path", m.certPath))
	return m, nil
}

// staleReason explains why the stored pair cannot be reused, or returns "".
func (m *autoManager) staleReason(hosts []string, now time.Time) string {
	certPEM, err := os.ReadFile(m.certPath)
	if err != nil {
		return "missing"
	}
	if _, err := tls.LoadX509KeyPair(m.certPath, m.keyPath); err != nil {
		return "unreadable"
	}
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return "unreadable"
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "unreadable"
	}
	if now.Before(cert.NotBefore) || now.Add(autoRenewBefore).After(cert.NotAfter) {
		return "expiring"
	}
	if !slices.Equal(certHosts(cert), sortedHosts(hosts)) {
		return "hosts changed"
	}
	return ""
}

func (m *autoManager) GetTLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(m.certPath, m.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load self-signed certificate: %w", err)
	}
	return &tls.Config{
		MinVersion:   MinTLSVersion,
		Certificates: []tls.Certificate{cert},
	}, nil
}

func (m *autoManager) Description() string {
	return fmt.Sprintf("self-signed (cert=%s), development only", m.certPath)
}

func (m *autoManager) Shutdown() error {
	return nil
}

func writeSelfSigned(certPath, keyPath string, hosts []string, now time.Time) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"cms-graphql (self-signed)"},
			CommonName:   hosts[0],
		},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(autoCertLifetime),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to encode private key: %w", err)
	}

	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	return nil
}

func certHosts(cert *x509.Certificate) []string {
	hosts := slices.Clone(cert.DNSNames)
	for _, ip := range cert.IPAddresses {
		hosts = append(hosts, ip.String())
	}
	return sortedHosts(hosts)
}

func sortedHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			h = ip.String()
		}
		out = append(out, h)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
