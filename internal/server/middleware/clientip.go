package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

var clientIPKey = contextKey{"client_ip"}

// ClientIP records the request's client address in its context. When trustProxy is set the
// first X-Forwarded-For entry, then X-Real-IP, take precedence over the socket address.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trustProxy)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey, ip)))
		})
	}
}

// ClientIPFromContext returns the address stored by ClientIP, or "unknown".
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

func resolveClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
			if i := strings.Index(s, ","); i > 0 {
				s = strings.TrimSpace(s[:i])
			}
			return s
		}
		if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
			return s
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
