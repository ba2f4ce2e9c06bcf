// Package handler serves GET /api/health.
package handler

import (
	"net/http"

	"secret-vault/backend/internal/server/httpx"
)

// Reporter reports whether the service can serve requests.
type Reporter interface {
	Healthy() bool
}

type healthResponse struct {
	Status string `json:"status"`
}

// New returns the health handler. It answers 200 {"status":"ok"} while the reporter is
// healthy and 503 otherwise.
func New(r Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if r != nil && !r.Healthy() {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
