// Package handler exposes the biometric unlock ceremonies over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"secret-vault/backend/internal/biometric/domain"
	"secret-vault/backend/internal/server/httpx"
	"secret-vault/backend/internal/server/middleware"
)

// Ceremonies is the subset of the authenticator the handler drives.
type Ceremonies interface {
	BeginRegistration(ctx context.Context, userID string) (*protocol.CredentialCreation, error)
	CompleteRegistration(ctx context.Context, userID string, body []byte) (*domain.Credential, error)
	BeginAuthentication(ctx context.Context, userID string) (*protocol.CredentialAssertion, error)
	CompleteAuthentication(ctx context.Context, userID string, body []byte) (*domain.Credential, error)
	RemoveAll(ctx context.Context, userID string) error
	Status(ctx context.Context, userID string) (int, error)
}

// Handler serves /webauthn routes. Every route expects an authenticated session.
type Handler struct {
	ceremonies Ceremonies
}

// New returns a Handler over c.
func New(c Ceremonies) *Handler {
	return &Handler{ceremonies: c}
}

// RegisterRoutes mounts the ceremony routes on r, which must already require a session.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/webauthn/register-options", h.registerOptions).Methods(http.MethodPost)
	r.HandleFunc("/webauthn/register-verify", h.registerVerify).Methods(http.MethodPost)
	r.HandleFunc("/webauthn/auth-options", h.authOptions).Methods(http.MethodPost)
	r.HandleFunc("/webauthn/auth-verify", h.authVerify).Methods(http.MethodPost)
	r.HandleFunc("/webauthn", h.status).Methods(http.MethodGet)
	r.HandleFunc("/webauthn", h.remove).Methods(http.MethodDelete)
}

type verifyResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

type statusResponse struct {
	Enabled     bool `json:"enabled"`
	Credentials int  `json:"credentials"`
}

// registerOptions returns the bare publicKey options, the shape browser helpers expect.
func (h *Handler) registerOptions(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	creation, err := h.ceremonies.BeginRegistration(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, creation.Response)
}

func (h *Handler) registerVerify(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	if _, err := h.ceremonies.CompleteRegistration(r.Context(), userID, body); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, verifyResponse{Verified: true, Message: "Biometric unlock enabled"})
}

func (h *Handler) authOptions(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	assertion, err := h.ceremonies.BeginAuthentication(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, assertion.Response)
}

func (h *Handler) authVerify(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	if _, err := h.ceremonies.CompleteAuthentication(r.Context(), userID, body); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, verifyResponse{Verified: true, Message: "Vault unlocked"})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	n, err := h.ceremonies.Status(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Enabled: n > 0, Credentials: n})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	if err := h.ceremonies.RemoveAll(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteMessage(w, "Biometric unlock disabled")
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := httpx.ReadBody(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if len(body) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "Credential response is required")
		return nil, false
	}
	return body, true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrChallengeNotFound):
		httpx.WriteError(w, http.StatusBadRequest, "Challenge expired. Please try again")
	case errors.Is(err, domain.ErrNoCredentialsRegistered):
		httpx.WriteError(w, http.StatusBadRequest, "No biometric credentials registered")
	case errors.Is(err, domain.ErrCredentialNotFound):
		httpx.WriteError(w, http.StatusBadRequest, "Credential not found")
	case errors.Is(err, domain.ErrVerificationFailed):
		httpx.WriteError(w, http.StatusBadRequest, "Biometric verification failed")
	case errors.Is(err, domain.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "User not found")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("biometric: request failed")
		httpx.WriteError(w, http.StatusInternalServerError, "Server error")
	}
}
