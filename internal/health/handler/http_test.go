package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type staticReporter bool

func (s staticReporter) Healthy() bool { return bool(s) }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		r      Reporter
		status int
		body   string
	}{
		{"healthy", staticReporter(true), http.StatusOK, `"ok"`},
		{"unhealthy", staticReporter(false), http.StatusServiceUnavailable, `"unavailable"`},
		{"no reporter", nil, http.StatusOK, `"ok"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			New(tt.r).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			if rec.Code != tt.status || !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("got %d %s", rec.Code, rec.Body)
			}
		})
	}
}
