package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"cms-graphql/internal/store"

	"github.com/go-sql-driver/mysql"
)

// tlsConfigName is the name used to register custom TLS configs with the MySQL driver.
const tlsConfigName = "cms-graphql-custom"

var defaultPorts = map[string]int{
	store.ProviderPostgreSQL: 5432,
	store.ProviderMySQL:      3306,
	store.ProviderMongoDB:    27017,
}

// UsesSQL reports whether the provider is served by database/sql.
func (d *DatabaseConfig) UsesSQL() bool {
	switch d.Provider {
	case store.ProviderPostgreSQL, store.ProviderMySQL, store.ProviderSQLite:
		return true
	}
	return false
}

// EffectivePort returns the configured port or the provider's default.
func (d *DatabaseConfig) EffectivePort() int {
	if d.Port > 0 {
		return d.Port
	}
	return defaultPorts[d.Provider]
}

// DSN returns the data source name handed to the provider's driver: a
// go-sql-driver DSN for mysql, a URL for postgresql and mongodb, and a file
// path for sqlite.
func (d *DatabaseConfig) DSN() string {
	if d.ConnectionString != "" {
		switch d.Provider {
		case store.ProviderMySQL:
			return d.mysqlDSN(d.ConnectionString)
		case store.ProviderSQLite:
			return sqliteDSN(d.ConnectionString)
		}
		return d.ConnectionString
	}

	switch d.Provider {
	case store.ProviderMySQL:
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.EffectivePort()))
		cfg.DBName = d.Database
		return d.mysqlDSN(cfg.FormatDSN())
	case store.ProviderPostgreSQL:
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.EffectivePort())),
			Path:   "/" + d.Database,
		}
		if d.User != "" {
			u.User = url.UserPassword(d.User, d.Password)
		}
		if d.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
		}
		return u.String()
	case store.ProviderMongoDB:
		u := url.URL{
			Scheme: "mongodb",
			Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.EffectivePort())),
		}
		if d.User != "" {
			u.User = url.UserPassword(d.User, d.Password)
		}
		return u.String()
	case store.ProviderSQLite:
		return sqliteDSN(d.Database)
	}
	return ""
}

// sqliteDSN makes the modernc driver write times in a format it parses back.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_time_format=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_time_format=sqlite"
	}
	return dsn + "?_time_format=sqlite"
}

// mysqlDSN adds the parameters the store relies on to a MySQL DSN.
func (d *DatabaseConfig) mysqlDSN(dsn string) string {
	add := func(param string) {
		if strings.Contains(dsn, "?") {
			dsn += "&" + param
		} else {
			dsn += "?" + param
		}
	}
	if !strings.Contains(dsn, "parseTime") {
		add("parseTime=true")
	}
	if !strings.Contains(dsn, "loc=") {
		add("loc=UTC")
	}
	if tlsParam := d.effectiveTLSParam(); tlsParam != "" && !strings.Contains(dsn, "tls=") {
		add("tls=" + tlsParam)
	}
	return dsn
}

// EffectiveDatabaseName returns the database the store works in. For
// mongodb it also names the database inside the deployment.
func (d *DatabaseConfig) EffectiveDatabaseName() (string, error) {
	name := strings.TrimSpace(d.Database)
	fromDSN, err := d.dsnDatabaseName()
	if err != nil {
		return "", err
	}
	if name != "" && fromDSN != "" && name != fromDSN && d.Provider != store.ProviderSQLite {
		return "", fmt.Errorf("database mismatch: database.database=%q but database.dsn targets %q", name, fromDSN)
	}
	if name != "" {
		return name, nil
	}
	return fromDSN, nil
}

func (d *DatabaseConfig) dsnDatabaseName() (string, error) {
	dsn := strings.TrimSpace(d.ConnectionString)
	if dsn == "" {
		return "", nil
	}
	switch d.Provider {
	case store.ProviderMySQL:
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("database.dsn is invalid: %w", err)
		}
		return parsed.DBName, nil
	case store.ProviderPostgreSQL, store.ProviderMongoDB:
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("database.dsn is invalid: %w", err)
		}
		return strings.TrimPrefix(parsed.Path, "/"), nil
	case store.ProviderSQLite:
		return dsn, nil
	}
	return "", nil
}

func (d *DatabaseConfig) effectiveTLSParam() string {
	switch d.TLS.Mode {
	case "":
		return ""
	case "off":
		return "false"
	case "skip-verify":
		return "skip-verify"
	case "verify-ca", "verify-full":
		return tlsConfigName
	default:
		return d.TLS.Mode
	}
}

// RegisterTLS registers the custom TLS configuration with the MySQL driver.
// It does nothing for other providers or modes without custom certificates.
func (d *DatabaseConfig) RegisterTLS() error {
	if d.Provider != store.ProviderMySQL {
		return nil
	}
	if d.TLS.Mode != "verify-ca" && d.TLS.Mode != "verify-full" {
		return nil
	}

	tlsCfg, err := d.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to build TLS config: %w", err)
	}
	if err := mysql.RegisterTLSConfig(tlsConfigName, tlsCfg); err != nil {
		return fmt.Errorf("failed to register TLS config: %w", err)
	}
	return nil
}

func (d *DatabaseConfig) buildTLSConfig() (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if d.TLS.CAFile != "" {
		caCert, err := os.ReadFile(d.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %q: %w", d.TLS.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %q", d.TLS.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	switch {
	case d.TLS.CertFile != "" && d.TLS.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(d.TLS.CertFile, d.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	case d.TLS.CertFile != "" || d.TLS.KeyFile != "":
		return nil, fmt.Errorf("both cert_file and key_file must be specified for client certificate authentication")
	}

	if d.TLS.Mode == "verify-full" && d.TLS.ServerName != "" {
		tlsCfg.ServerName = d.TLS.ServerName
	}
	return tlsCfg, nil
}
