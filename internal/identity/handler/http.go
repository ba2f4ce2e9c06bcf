package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"secret-vault/backend/internal/identity/service"
	otpdomain "secret-vault/backend/internal/otp/domain"
	"secret-vault/backend/internal/server/httpx"
	"secret-vault/backend/internal/server/middleware"
	userdomain "secret-vault/backend/internal/user/domain"
)

// Handler serves the account HTTP API backed by the auth service.
type Handler struct {
	auth *service.AuthService
}

// New returns a Handler for auth.
func New(auth *service.AuthService) *Handler {
	return &Handler{auth: auth}
}

// RegisterAuthRoutes mounts the signup, sign-in and password reset routes on r. Only /me
// requires a session; requireSession wraps it.
func (h *Handler) RegisterAuthRoutes(r *mux.Router, requireSession func(http.Handler) http.Handler) {
	r.HandleFunc("/signup/send-otp", h.signupSendOTP).Methods(http.MethodPost)
	r.HandleFunc("/signup/verify", h.signupVerify).Methods(http.MethodPost)
	r.HandleFunc("/signin", h.signIn).Methods(http.MethodPost)
	r.HandleFunc("/signin/verify", h.signInVerify).Methods(http.MethodPost)
	r.HandleFunc("/forgot-password/send-otp", h.forgotSendOTP).Methods(http.MethodPost)
	r.HandleFunc("/forgot-password/verify", h.forgotVerify).Methods(http.MethodPost)
	r.HandleFunc("/forgot-password/reset", h.forgotReset).Methods(http.MethodPost)
	r.Handle("/me", requireSession(http.HandlerFunc(h.me))).Methods(http.MethodGet)
}

// RegisterUserRoutes mounts the account settings routes on r, which must already require a session.
func (h *Handler) RegisterUserRoutes(r *mux.Router) {
	r.HandleFunc("/profile", h.updateProfile).Methods(http.MethodPut)
	r.HandleFunc("/change-email/send-otp", h.changeEmailSendOTP).Methods(http.MethodPost)
	r.HandleFunc("/change-email/verify", h.changeEmailVerify).Methods(http.MethodPost)
	r.HandleFunc("/change-password", h.changePassword).Methods(http.MethodPut)
	r.HandleFunc("/two-factor", h.setTwoFactor).Methods(http.MethodPut)
	r.HandleFunc("/account", h.deleteAccount).Methods(http.MethodDelete)
}

type userResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	CreatedAt        time.Time `json:"createdAt"`
}

func toUserResponse(u *userdomain.User) userResponse {
	return userResponse{
		ID:               u.ID,
		Name:             u.Name,
		Username:         u.Username,
		Email:            u.Email,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
	}
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func toSessionResponse(res *service.AuthResult) sessionResponse {
	return sessionResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, User: toUserResponse(res.User)}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

func (h *Handler) signupSendOTP(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.StartSignup(r.Context(), req.Name, req.Email, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteMessage(w, "Verification code sent to your email")
}

func (h *Handler) signupVerify(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "All fields are required")
		return
	}
	res, err := h.auth.CompleteSignup(r.Context(), req.Name, req.Email, req.Password, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toSessionResponse(res))
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type signInResponse struct {
	RequiresTwoFactor bool   `json:"requiresTwoFactor"`
	Email             string `json:"email"`
	Message           string `json:"message"`
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.TwoFactorRequired {
		httpx.WriteJSON(w, http.StatusOK, signInResponse{
			RequiresTwoFactor: true,
			Email:             res.Email,
			Message:           "Verification code sent to your email",
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(res.Session))
}

func (h *Handler) signInVerify(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.auth.CompleteSignIn(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(res))
}

func (h *Handler) forgotSendOTP(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.StartPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteMessage(w, "If the email is registered, a code has been sent")
}

func (h *Handler) forgotVerify(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	token, err := h.auth.VerifyPasswordReset(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"resetToken": token})
}

type resetRequest struct {
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) forgotReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.ResetToken, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteMessage(w, "Password reset successfully. You can now sign in")
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	u, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

type profileRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	u, err := h.auth.UpdateProfile(r.Context(), userID, req.Name, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

type emailChangeRequest struct {
	NewEmail string `json:"newEmail"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

func (h *Handler) changeEmailSendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailChangeRequest
	if !decode(w, r, &req) {
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	if err := h.auth.StartEmailChange(r.Context(), userID, req.NewEmail, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteMessage(w, "Verification code sent to your new email")
}

func (h *Handler) changeEmailVerify(w http.ResponseWriter, r *http.Request) {
	var req emailChangeRequest
	if !decode(w, r, &req) {
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	u, err := h.auth.CompleteEmailChange(r.Context(), userID, req.NewEmail, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	if err := h.auth.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteMessage(w, "Password changed successfully")
}

type twoFactorRequest struct {
	Enabled  *bool  `json:"enabled"`
	Password string `json:"password"`
}

func (h *Handler) setTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		httpx.WriteError(w, http.StatusBadRequest, "Enabled status and password are required")
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	u, err := h.auth.SetTwoFactor(r.Context(), userID, *req.Enabled, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "2-step verification disabled"
	if u.TwoFactorEnabled {
		msg = "2-step verification enabled"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": msg, "twoFactorEnabled": u.TwoFactorEnabled})
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if !decode(w, r, &req) {
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	if err := h.auth.DeleteAccount(r.Context(), userID, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteMessage(w, "Account deleted successfully")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(r, v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeError maps service and verification errors to status codes. Unknown errors are logged
// and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		httpx.WriteError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrIncorrectPassword):
		httpx.WriteError(w, http.StatusUnauthorized, "Incorrect password")
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrSameEmail):
		httpx.WriteError(w, http.StatusBadRequest, "New email must be different from the current one")
	case errors.Is(err, service.ErrUsernameTaken):
		httpx.WriteError(w, http.StatusBadRequest, "Username already taken")
	case errors.Is(err, service.ErrInvalidResetToken):
		httpx.WriteError(w, http.StatusBadRequest, "Reset link expired. Please start over")
	case errors.Is(err, otpdomain.ErrCodeNotFound):
		httpx.WriteError(w, http.StatusBadRequest, "No verification code found. Please request a new one")
	case errors.Is(err, otpdomain.ErrInvalidCode):
		httpx.WriteError(w, http.StatusBadRequest, "Invalid verification code")
	case errors.Is(err, otpdomain.ErrCodeExpired):
		httpx.WriteError(w, http.StatusBadRequest, "Code expired. Please request a new one")
	case errors.Is(err, otpdomain.ErrEmailDispatchFailed):
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("identity: email dispatch failed")
		httpx.WriteError(w, http.StatusBadGateway, "Failed to send verification email")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("identity: request failed")
		httpx.WriteError(w, http.StatusInternalServerError, "Server error")
	}
}
