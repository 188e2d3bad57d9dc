// Command jwt-mint prints a bearer token for local testing. By default it
// signs an HS256 session token with the server's session secret; with --key
// it signs an RS256 token for an OIDC issuer instead.
package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cms-graphql/internal/middleware"
)

// claimFlags collects repeated --claim key=value flags.
type claimFlags map[string]interface{}

func (c claimFlags) String() string { return fmt.Sprint(map[string]interface{}(c)) }

func (c claimFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("claim %q must be key=value", value)
	}
	if strings.Contains(val, ",") {
		c[strings.TrimSpace(key)] = splitList(val)
	} else {
		c[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return nil
}

func main() {
	var currentUser, err = user.Current()
	if err != nil {
		currentUser = &user.User{Username: "user-1"}
	}

	claims := claimFlags{}
	secretFile := flag.String("secret-file", ".auth/session_secret", "Path to the session secret (HS256 mode)")
	privateKeyPath := flag.String("key", "", "Path to RSA private key (PEM); switches to RS256 mode")
	issuer := flag.String("issuer", "", "JWT issuer (default cms-graphql for HS256, https://localhost:9000 for RS256)")
	audience := flag.String("audience", "cms-graphql", "JWT audience (comma-separated)")
	subject := flag.String("subject", currentUser.Username, "JWT subject")
	kid := flag.String("kid", "local-key", "JWT key ID (RS256 mode)")
	expires := flag.Duration("expires", time.Hour, "Token lifetime (e.g. 1h)")
	flag.Var(claims, "claim", "Extra claim as key=value; commas make a list (repeatable)")
	flag.Parse()

	var signed string
	if *privateKeyPath != "" {
		signed, err = mintRS256(*privateKeyPath, *kid, *issuer, *audience, *subject, *expires, claims)
	} else {
		signed, err = mintSession(*secretFile, *issuer, *audience, *subject, *expires, claims)
	}
	if err != nil {
		exitErr(err)
	}

	fmt.Println(signed)
}

func mintSession(secretFile, issuer, audience, subject string, expires time.Duration, claims claimFlags) (string, error) {
	secret, err := os.ReadFile(secretFile)
	if err != nil {
		return "", fmt.Errorf("failed to read session secret: %w", err)
	}
	return middleware.SignSessionToken(middleware.SessionAuthConfig{
		Enabled:  true,
		Secret:   strings.TrimSpace(string(secret)),
		Issuer:   issuer,
		Audience: audience,
	}, subject, expires, claims)
}

func mintRS256(keyPath, kid, issuer, audience, subject string, expires time.Duration, extra claimFlags) (string, error) {
	privateKey, err := loadPrivateKey(keyPath)
	if err != nil {
		return "", err
	}
	if issuer == "" {
		issuer = "https://localhost:9000"
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": issuer,
		"sub": subject,
		"aud": splitList(audience),
		"iat": now.Unix(),
		"exp": now.Add(expires).Unix(),
		"nbf": now.Add(-1 * time.Minute).Unix(),
	}
	for k, v := range extra {
		if _, reserved := claims[k]; !reserved {
			claims[k] = v
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	return token.SignedString(privateKey)
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode private key pem")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type")
	}

	return rsaKey, nil
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

func splitList(value string) []string {
	raw := strings.Split(value, ",")
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
