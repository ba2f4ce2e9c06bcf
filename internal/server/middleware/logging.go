package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"secret-vault/backend/internal/server/httpx"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLog logs one line per request after it completes. Paths in skip are not logged.
func RequestLog(log zerolog.Logger, skip map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if skip[r.URL.Path] {
				return
			}
			ev := log.Info()
			if rec.status >= http.StatusInternalServerError {
				ev = log.Error()
			} else if rec.status >= http.StatusBadRequest {
				ev = log.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Str("client_ip", ClientIPFromContext(r.Context())).
				Msg("http request")
		})
	}
}

// Recover turns a handler panic into a 500 and logs it.
func Recover(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					log.Error().Interface("panic", v).Str("path", r.URL.Path).Msg("http: handler panic")
					httpx.WriteError(w, http.StatusInternalServerError, "Server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
