package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/viper"
	"golang.org/x/term"
)

const stdinSource = "@-"

// secretFiles pairs each secret key with the key naming a file it may be read
// from. An inline value wins over the file.
var secretFiles = []struct {
	key, fileKey, label string
}{
	{"database.dsn", "database.dsn_file", "database DSN"},
	{"database.password", "database.password_file", "database password"},
	{"server.auth.session_secret", "server.auth.session_secret_file", "session secret"},
	{"server.admin.auth_token", "server.admin.auth_token_file", "admin auth token"},
}

// validateSingleStdinFileSource rejects configs where more than one secret
// file reads stdin.
func validateSingleStdinFileSource(v *viper.Viper) error {
	var stdinKeys []string
	for _, s := range secretFiles {
		if strings.TrimSpace(v.GetString(s.fileKey)) == stdinSource {
			stdinKeys = append(stdinKeys, s.fileKey)
		}
	}
	if len(stdinKeys) < 2 {
		return nil
	}
	return fmt.Errorf("multiple stdin-backed file settings use %s (%s); only one %s source is allowed",
		stdinSource, strings.Join(stdinKeys, ", "), stdinSource)
}

func resolveSecretFiles(v *viper.Viper) error {
	for _, s := range secretFiles {
		path := strings.TrimSpace(v.GetString(s.fileKey))
		if path == "" || v.GetString(s.key) != "" {
			continue
		}
		value, err := readSecretFile(path)
		switch {
		case err != nil:
			return fmt.Errorf("failed to read %s file: %w", s.label, err)
		case value == "":
			return fmt.Errorf("%s file %q is empty", s.label, path)
		}
		v.Set(s.key, value)
	}
	return nil
}

// readSecretFile reads a trimmed secret from path, or from stdin for "@-".
func readSecretFile(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == stdinSource {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// promptPassword reads the database password from the terminal without echo.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter database password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}
