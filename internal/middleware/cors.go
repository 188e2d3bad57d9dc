package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORSConfig configures Cross-Origin Resource Sharing (CORS) policies.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// defaultCORSHeaders are allowed when none are configured. Authorization and
// the admin token header are included so browser clients can reach /graphql
// and the lists reload endpoint.
var defaultCORSHeaders = []string{"Accept", "Content-Type", "Authorization", defaultAdminTokenHeader}

// CORSMiddleware adds CORS headers and answers preflight requests without
// reaching the wrapped handler.
func CORSMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   trimmed(cfg.AllowedOrigins),
		AllowedMethods:   methods,
		AllowedHeaders:   headers,
		ExposedHeaders:   cfg.ExposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
	return c.Handler
}

func trimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
