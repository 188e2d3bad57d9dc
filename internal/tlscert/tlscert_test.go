package tlscert

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-graphql/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "error", Format: "text"})
}

func readCert(t *testing.T, path string) *x509.Certificate {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	block, _ := pem.Decode(data)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return cert
}

func TestNewManager_UnknownMode(t *testing.T) {
	_, err := NewManager(Config{Mode: "acme"}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported TLS mode "acme"`)
}

func TestAutoManager_GeneratesAndReuses(t *testing.T) {
	dir := t.TempDir()

	m, err := NewManager(Config{Mode: ModeAuto, AutoCertDir: dir}, testLogger())
	require.NoError(t, err)

	certPath := filepath.Join(dir, autoCertName)
	cert := readCert(t, certPath)
	assert.Equal(t, []string{"localhost"}, cert.DNSNames)
	assert.Len(t, cert.IPAddresses, 2)

	keyInfo, err := os.Stat(filepath.Join(dir, autoKeyName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), keyInfo.Mode().Perm())

	tlsCfg, err := m.GetTLSConfig()
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), tlsCfg.MinVersion)
	require.Len(t, tlsCfg.Certificates, 1)

	_, err = NewManager(Config{Mode: ModeAuto, AutoCertDir: dir}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, cert.SerialNumber, readCert(t, certPath).SerialNumber, "valid certificate should be reused")
}

func TestAutoManager_RegeneratesWhenHostsChange(t *testing.T) {
	dir := t.TempDir()

	_, err := NewManager(Config{Mode: ModeAuto, AutoCertDir: dir}, testLogger())
	require.NoError(t, err)
	first := readCert(t, filepath.Join(dir, autoCertName))

	_, err = NewManager(Config{Mode: ModeAuto, AutoCertDir: dir, AutoHosts: []string{"cms.local", "10.0.0.5"}}, testLogger())
	require.NoError(t, err)
	second := readCert(t, filepath.Join(dir, autoCertName))

	assert.NotEqual(t, first.SerialNumber, second.SerialNumber)
	assert.Equal(t, []string{"cms.local"}, second.DNSNames)
	assert.Equal(t, "cms.local", second.Subject.CommonName)
}

func TestAutoManager_StaleReason(t *testing.T) {
	dir := t.TempDir()
	m := &autoManager{
		certPath: filepath.Join(dir, autoCertName),
		keyPath:  filepath.Join(dir, autoKeyName),
	}
	now := time.Now()
	assert.Equal(t, "missing", m.staleReason(DefaultHosts, now))

	require.NoError(t, writeSelfSigned(m.certPath, m.keyPath, DefaultHosts, now))
	assert.Empty(t, m.staleReason(DefaultHosts, now))
	assert.Empty(t, m.staleReason([]string{"::1", "localhost", "127.0.0.1"}, now), "host order is irrelevant")
	assert.Equal(t, "hosts changed", m.staleReason([]string{"localhost"}, now))
	assert.Equal(t, "expiring", m.staleReason(DefaultHosts, now.Add(autoCertLifetime-time.Hour)))
}

func TestFileManager_RequiresPaths(t *testing.T) {
	_, err := NewManager(Config{Mode: ModeFile}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.tls_cert_file is required")

	_, err = NewManager(Config{Mode: ModeFile, CertFile: "server.crt"}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.tls_key_file is required")
}

func TestFileManager_RejectsOpenKeyPermissions(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	require.NoError(t, writeSelfSigned(certPath, keyPath, DefaultHosts, time.Now()))
	require.NoError(t, os.Chmod(keyPath, 0o644))

	_, err := NewManager(Config{Mode: ModeFile, CertFile: certPath, KeyFile: keyPath}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")
}

func TestFileManager_ReloadsRotatedCertificate(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	require.NoError(t, writeSelfSigned(certPath, keyPath, DefaultHosts, time.Now()))

	m, err := NewManager(Config{Mode: ModeFile, CertFile: certPath, KeyFile: keyPath}, testLogger())
	require.NoError(t, err)
	tlsCfg, err := m.GetTLSConfig()
	require.NoError(t, err)

	first, err := tlsCfg.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	again, err := tlsCfg.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	assert.Same(t, first, again, "unchanged files should serve the cached pair")

	require.NoError(t, writeSelfSigned(certPath, keyPath, []string{"rotated.local"}, time.Now()))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(certPath, later, later))
	require.NoError(t, os.Chtimes(keyPath, later, later))

	rotated, err := tlsCfg.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(rotated.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"rotated.local"}, leaf.DNSNames)
}

func TestFileManager_KeepsServingAfterFailedReload(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	require.NoError(t, writeSelfSigned(certPath, keyPath, DefaultHosts, time.Now()))

	m, err := NewManager(Config{Mode: ModeFile, CertFile: certPath, KeyFile: keyPath}, testLogger())
	require.NoError(t, err)
	tlsCfg, err := m.GetTLSConfig()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(certPath, []byte("not a certificate"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(certPath, later, later))

	cert, err := tlsCfg.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	assert.NotNil(t, cert)
}
