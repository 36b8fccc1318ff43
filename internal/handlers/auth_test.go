package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-chi/chi/v5"
	"github.com/relaychat/apiserver/internal/auth"
	"github.com/relaychat/apiserver/internal/services"
	"github.com/relaychat/apiserver/internal/store"
)

type testEnv struct {
	router *chi.Mux
	users  *store.MemoryUserRepository
	tokens *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := store.NewMemoryUserRepository()
	messages := store.NewMemoryMessageRepository()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	tokens := auth.NewTokenService("test-secret", time.Hour)

	authService := services.NewAuthService(users, hasher, tokens)
	messageService := services.NewMessageService(messages, nil)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authService)
	})
	router.Route("/messages", func(r chi.Router) {
		MessageRouter(r, messageService, RequireAuth(tokens, users), nil)
	})

	return &testEnv{router: router, users: users, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, username, email, password string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", email, rec.Code, rec.Body)
	}
	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Fatalf("expected token_type bearer, got %q", resp.TokenType)
	}
	if resp.AccessToken == "" {
		t.Fatal("expected an access token")
	}
	return resp.AccessToken
}

func TestRegisterReturnsUsableToken(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "alice", "alice@example.com", "pw1")

	// The register token is a real session: message routes accept it.
	rec := env.do(t, http.MethodGet, "/messages/", token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with register token, got %d", rec.Code)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "alice", "alice@example.com", "pw1")

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "pw2",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on duplicate email, got %d", rec.Code)
	}
	if env.users.Count() != 1 {
		t.Errorf("expected one stored user, got %d", env.users.Count())
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing username", map[string]string{"email": "a@example.com", "password": "pw"}},
		{"missing email", map[string]string{"username": "a", "password": "pw"}},
		{"missing password", map[string]string{"username": "a", "email": "a@example.com"}},
		{"invalid email", map[string]string{"username": "a", "email": "not-an-email", "password": "pw"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/auth/register", "", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "alice", "alice@example.com", "pw1")

	rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "pw1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	subject, err := env.tokens.Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	user, err := env.users.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if subject != user.ID.String() {
		t.Errorf("token subject %q does not match user id %q", subject, user.ID)
	}
}

func TestLoginFailuresShareOneShape(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "alice", "alice@example.com", "pw1")

	wrongPassword := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrongpw",
	})
	unknownEmail := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "pw1",
	})

	if wrongPassword.Code != http.StatusBadRequest {
		t.Errorf("wrong password: expected 400, got %d", wrongPassword.Code)
	}
	if unknownEmail.Code != http.StatusBadRequest {
		t.Errorf("unknown email: expected 400, got %d", unknownEmail.Code)
	}
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Errorf("login failures leak identity existence: %q vs %q",
			wrongPassword.Body, unknownEmail.Body)
	}
}

func TestUnauthenticatedRequests(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "alice", "alice@example.com", "pw1")

	expired, err := env.tokens.IssueWithTTL("whatever", -time.Minute)
	if err != nil {
		t.Fatalf("IssueWithTTL: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic " + token},
		{"no token", "Bearer "},
		{"garbage token", "Bearer not-a-token"},
		{"expired token", "Bearer " + expired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/messages/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestValidTokenForDeletedUser(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "alice", "alice@example.com", "pw1")
	user, err := env.users.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if err := env.users.Delete(context.Background(), user.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/messages/", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a token whose user is gone, got %d", rec.Code)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice", "alice@example.com", "pw1")

	// Separate router with a 2-request bucket and no refill, so the
	// third request trips the limiter deterministically.
	users := env.users
	limited := chi.NewRouter()
	limited.Route("/messages", func(r chi.Router) {
		MessageRouter(r,
			services.NewMessageService(store.NewMemoryMessageRepository(), nil),
			RequireAuth(env.tokens, users),
			RateLimit(2, 0),
		)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/messages/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/messages/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after bucket drained, got %d", rec.Code)
	}
}
