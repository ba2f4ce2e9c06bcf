// Package handler serves the per-user category routes.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"secret-vault/backend/internal/category/domain"
	"secret-vault/backend/internal/server/httpx"
	"secret-vault/backend/internal/server/middleware"
)

// Categories is the category service as seen by the handler.
type Categories interface {
	List(ctx context.Context, userID string) ([]domain.Category, error)
	Add(ctx context.Context, userID, label, icon string) ([]domain.Category, error)
	Update(ctx context.Context, userID, value string, label, icon *string) ([]domain.Category, error)
	Delete(ctx context.Context, userID, value string) ([]domain.Category, error)
}

// Handler serves /categories.
type Handler struct {
	cats Categories
}

// New returns a Handler over cats.
func New(cats Categories) *Handler {
	return &Handler{cats: cats}
}

// RegisterRoutes mounts the category routes on r, which must already require a session.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/categories", h.list).Methods(http.MethodGet)
	r.HandleFunc("/categories", h.add).Methods(http.MethodPost)
	r.HandleFunc("/categories/{value}", h.update).Methods(http.MethodPut)
	r.HandleFunc("/categories/{value}", h.remove).Methods(http.MethodDelete)
}

type categoryResponse struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

type listResponse struct {
	Categories []categoryResponse `json:"categories"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	cats, err := h.cats.List(r.Context(), userID(r))
	respond(w, r, cats, err)
}

type addRequest struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !decode(w, r, &req) {
		return
	}
	cats, err := h.cats.Add(r.Context(), userID(r), req.Label, req.Icon)
	respond(w, r, cats, err)
}

type updateRequest struct {
	Label *string `json:"label"`
	Icon  *string `json:"icon"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decode(w, r, &req) {
		return
	}
	cats, err := h.cats.Update(r.Context(), userID(r), mux.Vars(r)["value"], req.Label, req.Icon)
	respond(w, r, cats, err)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	cats, err := h.cats.Delete(r.Context(), userID(r), mux.Vars(r)["value"])
	respond(w, r, cats, err)
}

func respond(w http.ResponseWriter, r *http.Request, cats []domain.Category, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := listResponse{Categories: make([]categoryResponse, len(cats))}
	for i, c := range cats {
		out.Categories[i] = categoryResponse{Value: c.Value, Label: c.Label, Icon: c.Icon}
	}
	httpx.WriteJSON(w, http.StatusOK, out)
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
	case errors.Is(err, domain.ErrCategoryNotFound):
		httpx.WriteError(w, http.StatusNotFound, "Category not found")
	case errors.Is(err, domain.ErrCategoryExists):
		httpx.WriteError(w, http.StatusConflict, "Category already exists")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("categories: request failed")
		httpx.WriteError(w, http.StatusInternalServerError, "Server error")
	}
}
