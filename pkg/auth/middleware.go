package auth

import (
	"net"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"croptalk/pkg/logger"
	"croptalk/pkg/telemetry"
)

// statusWriter records the response status for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// SecConfig mirrors the security-related configuration used to drive the
// request middleware. Identity itself is resolved by the marketplace's
// session layer in front of this service; here we only rate-limit and
// scope origins.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
}

// Middleware applies, in order: request-id tagging, CORS allow-list
// checks and per-client rate limiting.
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	limiters := newLimiterPool(cfg)
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	allowAll := false
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		origins[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-Id")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", reqID)

			if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := origins[origin]; ok || allowAll {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
				} else {
					logger.Warn("origin_rejected", "origin", origin, "path", r.URL.Path)
					http.Error(w, `{"error":"origin not allowed"}`, http.StatusForbidden)
					return
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !limiters.Allow(host) {
				telemetry.RateLimited.Inc()
				logger.Warn("rate_limited", "remote", host, "path", r.URL.Path)
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			telemetry.HTTPRequests.WithLabelValues(r.URL.Path, strconv.Itoa(sw.status/100)+"xx").Inc()
		})
	}
}
