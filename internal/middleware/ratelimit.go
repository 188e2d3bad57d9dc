package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cms-graphql/internal/gqlerrors"
)

// RateLimitConfig configures the request limiter. With PerClient set every
// remote address gets its own bucket; otherwise one bucket covers the server.
type RateLimitConfig struct {
	Enabled   bool
	RPS       float64
	Burst     int
	PerClient bool
}

// clientIdleTTL bounds how long an unused per-client bucket is retained.
const clientIdleTTL = 10 * time.Minute

// RateLimitMiddleware rejects requests over the configured rate with 429 and a
// GraphQL error body carrying KS_LIMITS_EXCEEDED_ERROR.
func RateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled || cfg.RPS <= 0 || cfg.Burst <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiters := newLimiterSet(rate.Limit(cfg.RPS), cfg.Burst, time.Now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if cfg.PerClient {
				key = clientAddress(r)
			}
			if !limiters.get(key).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				writeGraphQLErrorBody(w, "Rate limit exceeded", gqlerrors.CodeLimitsExceeded)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	now       func() time.Time
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

func newLimiterSet(limit rate.Limit, burst int, now func() time.Time) *limiterSet {
	return &limiterSet{
		limit:     limit,
		burst:     burst,
		now:       now,
		entries:   make(map[string]*limiterEntry),
		lastSweep: now(),
	}
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > clientIdleTTL {
		for k, e := range s.entries {
			if now.Sub(e.lastSeen) > clientIdleTTL {
				delete(s.entries, k)
			}
		}
		s.lastSweep = now
	}

	entry, ok := s.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
