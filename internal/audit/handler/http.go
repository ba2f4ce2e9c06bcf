// Package handler serves the account activity log.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"secret-vault/backend/internal/audit/domain"
	"secret-vault/backend/internal/server/httpx"
	"secret-vault/backend/internal/server/middleware"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Lister reads a user's audit logs.
type Lister interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.AuditLog, error)
}

// Handler serves GET /activity.
type Handler struct {
	logs Lister
}

// New returns a Handler over logs.
func New(logs Lister) *Handler {
	return &Handler{logs: logs}
}

// RegisterRoutes mounts the activity route on r, which must already require a session.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/activity", h.activity).Methods(http.MethodGet)
}

type activityResponse struct {
	Action    string    `json:"action"`
	Source    string    `json:"source"`
	Reason    string    `json:"reason,omitempty"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	limit := queryInt(r, "limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	logs, err := h.logs.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("audit: list activity")
		httpx.WriteError(w, http.StatusInternalServerError, "Server error")
		return
	}
	out := make([]activityResponse, len(logs))
	for i, a := range logs {
		out[i] = activityResponse{Action: a.Action, Source: a.Source, Reason: a.Reason, IP: a.IP, CreatedAt: a.CreatedAt}
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
