package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func authTestHandler(captured **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareBearerToken(t *testing.T) {
	codec := NewCodec("test-secret", time.Minute)
	token, err := codec.IssueAccess(42)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	var identity *Identity
	handler := Middleware(codec)(authTestHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if identity == nil {
		t.Fatal("identity not attached to context")
	}
	if identity.UserID != 42 {
		t.Errorf("expected user 42, got %d", identity.UserID)
	}
	if identity.Source != SourceBearer {
		t.Errorf("expected bearer source, got %q", identity.Source)
	}
}

func TestMiddlewareBadBearerDoesNotFallBack(t *testing.T) {
	codec := NewCodec("test-secret", time.Minute)

	var identity *Identity
	handler := Middleware(codec)(authTestHandler(&identity))

	// A bad bearer with a valid cookie must still 401: the cookie tier is
	// consulted only when no Authorization header is present at all.
	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.Header.Set("Authorization", "Bearer not-a-valid-token")
	req.AddCookie(&http.Cookie{Name: LegacyCookieName, Value: "42"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if identity != nil {
		t.Error("handler should not have run")
	}
}

func TestMiddlewareExpiredBearer(t *testing.T) {
	codec := NewCodec("test-secret", -time.Minute)
	token, err := codec.IssueAccess(42)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	var identity *Identity
	handler := Middleware(codec)(authTestHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestMiddlewareMalformedAuthorizationHeader(t *testing.T) {
	codec := NewCodec("test-secret", time.Minute)

	for _, header := range []string{"Bearer", "Basic dXNlcjpwYXNz", "token-without-scheme"} {
		var identity *Identity
		handler := Middleware(codec)(authTestHandler(&identity))

		req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestMiddlewareLegacyCookie(t *testing.T) {
	codec := NewCodec("test-secret", time.Minute)

	var identity *Identity
	handler := Middleware(codec)(authTestHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.AddCookie(&http.Cookie{Name: LegacyCookieName, Value: "7"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if identity == nil {
		t.Fatal("identity not attached to context")
	}
	if identity.UserID != 7 {
		t.Errorf("expected user 7, got %d", identity.UserID)
	}
	if identity.Source != SourceLegacyCookie {
		t.Errorf("expected cookie source, got %q", identity.Source)
	}
}

func TestMiddlewareInvalidCookie(t *testing.T) {
	codec := NewCodec("test-secret", time.Minute)

	for _, value := range []string{"abc", "0", "-5"} {
		var identity *Identity
		handler := Middleware(codec)(authTestHandler(&identity))

		req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
		req.AddCookie(&http.Cookie{Name: LegacyCookieName, Value: value})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("cookie %q: expected 401, got %d", value, rec.Code)
		}
	}
}

func TestMiddlewareNoCredentials(t *testing.T) {
	codec := NewCodec("test-secret", time.Minute)

	var identity *Identity
	handler := Middleware(codec)(authTestHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
