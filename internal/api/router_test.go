package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edufinance/backend/internal/auth"
	apperrors "github.com/edufinance/backend/internal/errors"
	"github.com/edufinance/backend/internal/finance"
	"github.com/edufinance/backend/internal/health"
	"github.com/edufinance/backend/internal/ratelimit"
	"github.com/edufinance/backend/internal/store/jsonfile"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	st, err := jsonfile.Open("")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}

	codec := auth.NewCodec("test-secret", time.Minute)
	svc := auth.NewService(auth.ServiceConfig{Store: st, Codec: codec})

	return NewRouter(RouterConfig{
		AuthHandlers:    auth.NewHandlers(svc),
		Codec:           codec,
		FinanceHandlers: finance.NewHandlers(st.Users(), st.Transactions()),
		HealthHandler:   health.NewHandler(health.NewChecker(&health.CheckerConfig{})),
		Limiter:         ratelimit.NewMemoryLimiter(100, time.Minute),
		FrontendOrigin:  "http://localhost:5173",
	})
}

func doJSON(t *testing.T, router *Router, method, target string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestFullSessionLifecycle(t *testing.T) {
	router := newTestRouter(t)

	// Register
	rec := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"email": "student@example.com", "password": "Secret123",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var session struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}

	// Create a transaction with the access token
	rec = doJSON(t, router, http.MethodPost, "/transactions", map[string]any{
		"amount": -15.0, "category": "food", "name": "Lunch", "date": "2026-08-28",
	}, http.Header{"Authorization": {"Bearer " + session.AccessToken}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Refresh rotates the pair
	rec = doJSON(t, router, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": session.RefreshToken,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var rotated struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rotated); err != nil {
		t.Fatalf("failed to decode refresh response: %v", err)
	}

	// The new access token works on protected routes
	rec = doJSON(t, router, http.MethodGet, "/balance", nil,
		http.Header{"Authorization": {"Bearer " + rotated.AccessToken}})
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: expected 200, got %d", rec.Code)
	}

	// Logout revokes the rotated refresh token
	rec = doJSON(t, router, http.MethodPost, "/auth/logout", map[string]string{
		"refreshToken": rotated.RefreshToken,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": rotated.RefreshToken,
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout: expected 401, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	for _, target := range []string{"/transactions", "/balance"} {
		rec := doJSON(t, router, http.MethodGet, target, nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", target, rec.Code)
		}
	}
}

func TestRootAndHealthAreOpen(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("root: expected 200, got %d", rec.Code)
	}

	for _, target := range []string{"/health", "/health/live", "/health/ready", "/metrics"} {
		rec := doJSON(t, router, http.MethodGet, target, nil, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", target, rec.Code)
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/", nil, nil)
	if rec.Header().Get(apperrors.RequestIDHeader) == "" {
		t.Error("expected X-Request-ID on every response")
	}

	rec = doJSON(t, router, http.MethodGet, "/", nil, http.Header{
		apperrors.RequestIDHeader: {"client-supplied-id"},
	})
	if got := rec.Header().Get(apperrors.RequestIDHeader); got != "client-supplied-id" {
		t.Errorf("expected client-supplied request ID to be echoed, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodOptions, "/auth/login", nil, http.Header{
		"Origin":                        {"http://localhost:5173"},
		"Access-Control-Request-Method": {"POST"},
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Error("expected allowed origin header")
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials header")
	}
}

func TestAuthRoutesRateLimited(t *testing.T) {
	st, err := jsonfile.Open("")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	codec := auth.NewCodec("test-secret", time.Minute)
	svc := auth.NewService(auth.ServiceConfig{Store: st, Codec: codec})

	router := NewRouter(RouterConfig{
		AuthHandlers:    auth.NewHandlers(svc),
		Codec:           codec,
		FinanceHandlers: finance.NewHandlers(st.Users(), st.Transactions()),
		HealthHandler:   health.NewHandler(health.NewChecker(&health.CheckerConfig{})),
		Limiter:         ratelimit.NewMemoryLimiter(2, time.Minute),
		FrontendOrigin:  "",
	})

	body := map[string]string{"email": "student@example.com", "password": "WrongPass1"}
	for i := 0; i < 2; i++ {
		rec := doJSON(t, router, http.MethodPost, "/auth/login", body, nil)
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d should not be limited", i+1)
		}
	}

	rec := doJSON(t, router, http.MethodPost, "/auth/login", body, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after exceeding the limit, got %d", rec.Code)
	}
}
