// Package server assembles the HTTP API and the gRPC health server.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	audithandler "secret-vault/backend/internal/audit/handler"
	biometrichandler "secret-vault/backend/internal/biometric/handler"
	categoryhandler "secret-vault/backend/internal/category/handler"
	healthhandler "secret-vault/backend/internal/health/handler"
	identityhandler "secret-vault/backend/internal/identity/handler"
	identityservice "secret-vault/backend/internal/identity/service"
	"secret-vault/backend/internal/server/httpx"
	"secret-vault/backend/internal/server/middleware"
	vaulthandler "secret-vault/backend/internal/vault/handler"
	vaultservice "secret-vault/backend/internal/vault/service"
)

// Deps holds the services behind the HTTP API.
type Deps struct {
	// Auth serves /api/auth and the account routes under /api/user. Required.
	Auth *identityservice.AuthService
	// Sessions verifies bearer tokens. Required.
	Sessions middleware.SessionVerifier
	// Biometric serves /api/user/webauthn. If nil, those routes are not mounted.
	Biometric biometrichandler.Ceremonies
	// Categories serves /api/user/categories. If nil, those routes are not mounted.
	Categories categoryhandler.Categories
	// Vault serves /api/passwords. If nil, those routes are not mounted.
	Vault *vaultservice.Service
	// Activity serves /api/user/activity. If nil, the route is not mounted.
	Activity audithandler.Lister
	// Health reports readiness for /api/health. If nil, the endpoint always answers ok.
	Health healthhandler.Reporter
	// AuthLimiter throttles /api/auth per client IP. If nil, auth routes are not throttled.
	AuthLimiter *middleware.RateLimiter
	// AllowedOrigins are the browser origins allowed by CORS.
	AllowedOrigins []string
	// TrustProxy takes the client IP from proxy headers.
	TrustProxy bool
	Log        zerolog.Logger
}

// NewRouter returns the mux router with every API route mounted.
func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/health", healthhandler.New(deps.Health)).Methods(http.MethodGet)

	requireSession := middleware.RequireSession(deps.Sessions)
	identity := identityhandler.New(deps.Auth)

	auth := api.PathPrefix("/auth").Subrouter()
	if deps.AuthLimiter != nil {
		auth.Use(deps.AuthLimiter.Middleware)
	}
	identity.RegisterAuthRoutes(auth, requireSession)

	user := api.PathPrefix("/user").Subrouter()
	user.Use(requireSession)
	identity.RegisterUserRoutes(user)
	if deps.Biometric != nil {
		biometrichandler.New(deps.Biometric).RegisterRoutes(user)
	}
	if deps.Activity != nil {
		audithandler.New(deps.Activity).RegisterRoutes(user)
	}
	if deps.Categories != nil {
		categoryhandler.New(deps.Categories).RegisterRoutes(user)
	}

	if deps.Vault != nil {
		passwords := api.PathPrefix("/passwords").Subrouter()
		passwords.Use(requireSession)
		vaulthandler.New(deps.Vault).RegisterRoutes(passwords)
	}
	return r
}

// NewHandler wraps the router with CORS, client IP resolution, request logging, panic
// recovery and OpenTelemetry instrumentation.
func NewHandler(deps Deps) http.Handler {
	var h http.Handler = NewRouter(deps)
	h = middleware.RequestLog(deps.Log, map[string]bool{"/api/health": true})(h)
	h = middleware.Recover(deps.Log)(h)
	h = middleware.ClientIP(deps.TrustProxy)(h)
	h = cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	}).Handler(h)
	return otelhttp.NewHandler(h, "vault-api")
}
