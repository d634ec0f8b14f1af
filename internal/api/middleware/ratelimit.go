package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/auth/ratelimit"
)

// RateLimit enforces the key's own limit for authenticated requests and
// publicLimit per client address for anonymous ones. Health probes are not
// limited.
func RateLimit(limiter *ratelimit.Limiter, publicLimit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/healthz") {
				next.ServeHTTP(w, r)
				return
			}

			bucket, limit := "ip:"+clientIP(r), publicLimit
			if info := GetKeyInfo(r.Context()); info != nil {
				bucket, limit = "key:"+info.ID, info.RateLimit
			}
			if !limiter.Allow(bucket, limit) {
				retry := int(math.Ceil(limiter.RetryAfter(limit).Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
