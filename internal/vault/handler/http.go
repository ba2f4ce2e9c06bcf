// Package handler serves the vault entry routes.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"secret-vault/backend/internal/security"
	"secret-vault/backend/internal/server/httpx"
	"secret-vault/backend/internal/server/middleware"
	"secret-vault/backend/internal/vault/domain"
	"secret-vault/backend/internal/vault/service"
)

// Handler serves /api/passwords.
type Handler struct {
	vault *service.Service
}

// New returns a Handler over svc.
func New(svc *service.Service) *Handler {
	return &Handler{vault: svc}
}

// RegisterRoutes mounts the entry routes on r, which must already require a session.
// Fixed paths are registered before /{id} so they are not captured by it.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.list).Methods(http.MethodGet)
	r.HandleFunc("/", h.list).Methods(http.MethodGet)
	r.HandleFunc("", h.create).Methods(http.MethodPost)
	r.HandleFunc("/", h.create).Methods(http.MethodPost)
	r.HandleFunc("/export", h.export).Methods(http.MethodGet)
	r.HandleFunc("/import", h.importEntries).Methods(http.MethodPost)
	r.HandleFunc("/batch", h.deleteMany).Methods(http.MethodDelete)
	r.HandleFunc("/batch/category", h.moveMany).Methods(http.MethodPatch)
	r.HandleFunc("/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.update).Methods(http.MethodPut)
	r.HandleFunc("/{id}", h.remove).Methods(http.MethodDelete)
	r.HandleFunc("/{id}/favorite", h.toggleFavorite).Methods(http.MethodPatch)
}

type entryResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Website   string    `json:"website"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Notes     string    `json:"notes"`
	Category  string    `json:"category"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toResponse(e *domain.Entry) entryResponse {
	return entryResponse{
		ID:        e.ID,
		Title:     e.Title,
		Website:   e.Website,
		Username:  e.Username,
		Password:  e.Password,
		Notes:     e.Notes,
		Category:  string(e.Category),
		Favorite:  e.Favorite,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.Filter{Search: q.Get("search"), FavoriteOnly: q.Get("favorite") == "true"}
	if c := q.Get("category"); c != "" && c != "all" {
		cat, err := domain.ParseCategory(c)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "Invalid category")
			return
		}
		f.Category = cat
	}
	entries, err := h.vault.List(r.Context(), userID(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]entryResponse, len(entries))
	for i := range entries {
		out[i] = toResponse(&entries[i])
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	e, err := h.vault.Get(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(e))
}

type entryRequest struct {
	Title    string `json:"title"`
	Website  string `json:"website"`
	Username string `json:"username"`
	Password string `json:"password"`
	Notes    string `json:"notes"`
	Category string `json:"category"`
	Favorite bool   `json:"favorite"`
}

func (req entryRequest) input() service.Input {
	return service.Input{
		Title:    req.Title,
		Website:  req.Website,
		Username: req.Username,
		Password: req.Password,
		Notes:    req.Notes,
		Category: req.Category,
		Favorite: req.Favorite,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.vault.Create(r.Context(), userID(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResponse(e))
}

type patchRequest struct {
	Title    *string `json:"title"`
	Website  *string `json:"website"`
	Username *string `json:"username"`
	Password *string `json:"password"`
	Notes    *string `json:"notes"`
	Category *string `json:"category"`
	Favorite *bool   `json:"favorite"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.vault.Update(r.Context(), userID(r), mux.Vars(r)["id"], service.Patch(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(e))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.vault.Delete(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteMessage(w, "Deleted successfully")
}

func (h *Handler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	fav, err := h.vault.ToggleFavorite(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "favorite": fav})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	rows, err := h.vault.Export(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rows)
}

type importRequest struct {
	Passwords []entryRequest `json:"passwords"`
}

func (h *Handler) importEntries(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Passwords) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "No passwords to import")
		return
	}
	rows := make([]service.Input, len(req.Passwords))
	for i, p := range req.Passwords {
		rows[i] = p.input()
	}
	n, err := h.vault.Import(r.Context(), userID(r), rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]int{"imported": n})
}

type batchRequest struct {
	IDs      []string `json:"ids"`
	Category string   `json:"category"`
}

func (h *Handler) deleteMany(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.vault.DeleteMany(r.Context(), userID(r), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) moveMany(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.vault.MoveMany(r.Context(), userID(r), req.IDs, req.Category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func userID(r *http.Request) string {
	id, _ := middleware.GetUserID(r.Context())
	return id
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(r, v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		httpx.WriteError(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, domain.ErrEntryNotFound):
		httpx.WriteError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrNothingToImport):
		httpx.WriteError(w, http.StatusBadRequest, "No valid passwords found (title and password are required)")
	case errors.Is(err, security.ErrTamperedOrCorrupt), errors.Is(err, security.ErrMalformedInput):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("vault: stored secret failed to decrypt")
		httpx.WriteError(w, http.StatusInternalServerError, "Stored entry could not be decrypted")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("vault: request failed")
		httpx.WriteError(w, http.StatusInternalServerError, "Server error")
	}
}
