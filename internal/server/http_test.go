package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	auditrepo "secret-vault/backend/internal/audit/repository"
	categoryrepo "secret-vault/backend/internal/category/repository"
	categoryservice "secret-vault/backend/internal/category/service"
	identityservice "secret-vault/backend/internal/identity/service"
	otpdomain "secret-vault/backend/internal/otp/domain"
	otprepo "secret-vault/backend/internal/otp/repository"
	otpservice "secret-vault/backend/internal/otp/service"
	"secret-vault/backend/internal/security"
	"secret-vault/backend/internal/server/middleware"
	userrepo "secret-vault/backend/internal/user/repository"
	"secret-vault/backend/internal/vault"
	vaultrepo "secret-vault/backend/internal/vault/repository"
	vaultservice "secret-vault/backend/internal/vault/service"
)

type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *inbox) SendOTP(ctx context.Context, to, code string, purpose otpdomain.Purpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *inbox) last(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type harness struct {
	srv  *httptest.Server
	mail *inbox
}

func newHarness(t *testing.T, limiter *middleware.RateLimiter) *harness {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatal(err)
	}
	cipher, err := security.NewCipher(bytes.Repeat([]byte{5}, security.KeySize))
	if err != nil {
		t.Fatal(err)
	}
	mail := &inbox{codes: make(map[string]string)}
	engine := otpservice.NewEngine(otprepo.NewMemoryStore(), mail)
	entries := vaultrepo.NewMemoryRepository()
	categories := categoryservice.NewService(categoryrepo.NewMemoryRepository(), entries)
	auth := identityservice.NewAuthService(userrepo.NewMemoryRepository(), engine, security.NewHasher(4), tokens, nil)
	auth.SetAccountInitializer(categories)
	h := NewHandler(Deps{
		Auth:           auth,
		Sessions:       tokens,
		Categories:     categories,
		Vault:          vaultservice.NewService(entries, vault.NewSealer(cipher), vaultservice.WithCategories(categories)),
		Activity:       auditrepo.NewMemoryRepository(),
		AuthLimiter:    limiter,
		AllowedOrigins: []string{"http://localhost:5173"},
		Log:            zerolog.Nop(),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, mail: mail}
}

func (h *harness) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	resp, body := h.do(t, http.MethodGet, "/api/health", "", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t, nil)
	resp, body := h.do(t, http.MethodGet, "/api/nope", "", "")
	if resp.StatusCode != http.StatusNotFound || body["message"] != "Route not found" {
		t.Fatalf("got %d %v", resp.StatusCode, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t, nil)
	for _, path := range []string{"/api/auth/me", "/api/user/activity", "/api/user/categories", "/api/passwords", "/api/passwords/export"} {
		resp, body := h.do(t, http.MethodGet, path, "", "")
		if resp.StatusCode != http.StatusUnauthorized || body["message"] != "No token, authorization denied" {
			t.Errorf("%s: got %d %v", path, resp.StatusCode, body)
		}
	}
}

func (h *harness) signup(t *testing.T, email string) string {
	t.Helper()
	form := `{"name":"Ada","email":"` + email + `","password":"password1"}`
	if resp, body := h.do(t, http.MethodPost, "/api/auth/signup/send-otp", "", form); resp.StatusCode != http.StatusOK {
		t.Fatalf("send-otp = %d %v", resp.StatusCode, body)
	}
	verify := `{"name":"Ada","email":"` + email + `","password":"password1","code":"` + h.mail.last(email) + `"}`
	resp, body := h.do(t, http.MethodPost, "/api/auth/signup/verify", "", verify)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("verify = %d %v", resp.StatusCode, body)
	}
	return body["token"].(string)
}

func TestSignupThenVault(t *testing.T) {
	h := newHarness(t, nil)
	token := h.signup(t, "ada@example.com")

	resp, body := h.do(t, http.MethodPost, "/api/passwords", token, `{"title":"Bank","password":"hunter2"}`)
	if resp.StatusCode != http.StatusCreated || body["password"] != "hunter2" {
		t.Fatalf("create = %d %v", resp.StatusCode, body)
	}
	resp, body = h.do(t, http.MethodGet, "/api/passwords/"+body["id"].(string), token, "")
	if resp.StatusCode != http.StatusOK || body["title"] != "Bank" {
		t.Fatalf("get = %d %v", resp.StatusCode, body)
	}
}

func TestCustomCategoryLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	token := h.signup(t, "ada@example.com")

	resp, body := h.do(t, http.MethodPost, "/api/user/categories", token, `{"label":"Crypto","icon":"Bitcoin"}`)
	if resp.StatusCode != http.StatusOK || len(body["categories"].([]any)) != 8 {
		t.Fatalf("add category = %d %v", resp.StatusCode, body)
	}
	resp, body = h.do(t, http.MethodPost, "/api/passwords", token, `{"title":"Exchange","password":"p","category":"crypto"}`)
	if resp.StatusCode != http.StatusCreated || body["category"] != "crypto" {
		t.Fatalf("create in custom category = %d %v", resp.StatusCode, body)
	}
	id := body["id"].(string)
	resp, body = h.do(t, http.MethodPost, "/api/passwords", token, `{"title":"X","password":"p","category":"gaming"}`)
	if resp.StatusCode != http.StatusBadRequest || body["message"] != "Invalid category" {
		t.Fatalf("unknown category = %d %v", resp.StatusCode, body)
	}

	if resp, body := h.do(t, http.MethodDelete, "/api/user/categories/crypto", token, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete category = %d %v", resp.StatusCode, body)
	}
	resp, body = h.do(t, http.MethodGet, "/api/passwords/"+id, token, "")
	if resp.StatusCode != http.StatusOK || body["category"] != "other" {
		t.Fatalf("entry after category delete = %d %v", resp.StatusCode, body)
	}

	// Another account does not see the first account's categories.
	other := h.signup(t, "bob@example.com")
	resp, body = h.do(t, http.MethodPut, "/api/user/categories/crypto", other, `{"label":"Mine"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign category = %d %v", resp.StatusCode, body)
	}
}

func TestAuthRateLimit(t *testing.T) {
	h := newHarness(t, middleware.NewRateLimiter(2, time.Hour))
	for i := 0; i < 2; i++ {
		if resp, _ := h.do(t, http.MethodPost, "/api/auth/signin", "", `{}`); resp.StatusCode == http.StatusTooManyRequests {
			t.Fatalf("request %d throttled early", i)
		}
	}
	resp, body := h.do(t, http.MethodPost, "/api/auth/signin", "", `{}`)
	if resp.StatusCode != http.StatusTooManyRequests || resp.Header.Get("Retry-After") == "" {
		t.Fatalf("got %d, Retry-After %q", resp.StatusCode, resp.Header.Get("Retry-After"))
	}
	if body["message"] != "Too many requests, please try again later" {
		t.Errorf("message = %v", body["message"])
	}
	if resp, _ := h.do(t, http.MethodGet, "/api/health", "", ""); resp.StatusCode != http.StatusOK {
		t.Error("health must not be throttled")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, nil)
	req, _ := http.NewRequest(http.MethodOptions, h.srv.URL+"/api/passwords", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	resp, err := h.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
