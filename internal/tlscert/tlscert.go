// Package tlscert supplies server certificates for HTTPS: either a
// certificate/key pair on disk or a generated self-signed development pair.
package tlscert

import (
	"crypto/tls"
	"fmt"

	"cms-graphql/internal/logging"
)

// Mode selects where certificates come from. The values match server.tls_mode.
type Mode string

const (
	ModeFile Mode = "file"
	ModeAuto Mode = "auto"
)

// DefaultHosts are the names a generated certificate covers when none are configured.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// Config holds TLS certificate configuration.
type Config struct {
	Mode Mode

	CertFile string
	KeyFile  string

	// AutoCertDir receives server.crt and server.key in auto mode.
	AutoCertDir string
	AutoHosts   []string
}

// Manager provides the server TLS configuration.
type Manager interface {
	GetTLSConfig() (*tls.Config, error)
	Description() string
	Shutdown() error
}

// NewManager creates a certificate manager for cfg.Mode.
func NewManager(cfg Config, logger *logging.Logger) (Manager, error) {
	switch cfg.Mode {
	case ModeFile:
		return newFileManager(cfg, logger)
	case ModeAuto:
		return newAutoManager(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported TLS mode %q (valid modes: auto, file)", cfg.Mode)
	}
}

// MinTLSVersion is the minimum supported TLS version for the server.
const MinTLSVersion = tls.VersionTLS13
