package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/edufinance/backend/internal/errors"
	"github.com/edufinance/backend/internal/store/jsonfile"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()

	st, err := jsonfile.Open("")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	svc := NewService(ServiceConfig{
		Store: st,
		Codec: NewCodec("test-secret", time.Minute),
	})
	return NewHandlers(svc)
}

func postJSON(t *testing.T, h apperrors.Handler, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	apperrors.HandleFunc(h).ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error.Code
}

func TestRegisterHandler(t *testing.T) {
	h := newTestHandlers(t)

	rec := postJSON(t, h.Register, "/auth/register", map[string]string{
		"email":    "student@example.com",
		"password": "Secret123",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeSession(t, rec)
	if resp["ok"] != true {
		t.Error("expected ok:true")
	}
	if resp["email"] != "student@example.com" {
		t.Errorf("unexpected email %v", resp["email"])
	}
	if resp["accessToken"] == "" || resp["refreshToken"] == "" {
		t.Error("expected both tokens in response")
	}
	if _, ok := resp["userId"]; !ok {
		t.Error("expected userId in response")
	}

	cookies := rec.Result().Cookies()
	var found bool
	for _, c := range cookies {
		if c.Name == LegacyCookieName {
			found = true
			if !c.HttpOnly {
				t.Error("uid cookie should be httpOnly")
			}
		}
	}
	if !found {
		t.Error("expected uid cookie to be set")
	}
}

func TestRegisterHandlerValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"password": "Secret123"}},
		{"missing password", map[string]string{"email": "student@example.com"}},
		{"invalid email", map[string]string{"email": "notanemail", "password": "Secret123"}},
		{"short password", map[string]string{"email": "student@example.com", "password": "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(t)
			rec := postJSON(t, h.Register, "/auth/register", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if code := errorCode(t, rec); code != apperrors.CodeValidationError {
				t.Errorf("expected VALIDATION_ERROR, got %s", code)
			}
		})
	}
}

func TestRegisterHandlerDuplicate(t *testing.T) {
	h := newTestHandlers(t)
	body := map[string]string{"email": "student@example.com", "password": "Secret123"}

	if rec := postJSON(t, h.Register, "/auth/register", body); rec.Code != http.StatusCreated {
		t.Fatalf("first register: expected 201, got %d", rec.Code)
	}

	rec := postJSON(t, h.Register, "/auth/register", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != apperrors.CodeEmailExists {
		t.Errorf("expected EMAIL_EXISTS, got %s", code)
	}
}

func TestLoginHandler(t *testing.T) {
	h := newTestHandlers(t)

	postJSON(t, h.Register, "/auth/register", map[string]string{
		"email": "student@example.com", "password": "Secret123",
	})

	rec := postJSON(t, h.Login, "/auth/login", map[string]string{
		"email": "student@example.com", "password": "Secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, h.Login, "/auth/login", map[string]string{
		"email": "student@example.com", "password": "WrongPass1",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != apperrors.CodeInvalidCredentials {
		t.Errorf("expected INVALID_CREDENTIALS, got %s", code)
	}
}

func TestRefreshHandler(t *testing.T) {
	h := newTestHandlers(t)

	rec := postJSON(t, h.Register, "/auth/register", map[string]string{
		"email": "student@example.com", "password": "Secret123",
	})
	session := decodeSession(t, rec)
	refreshToken := session["refreshToken"].(string)

	rec = postJSON(t, h.Refresh, "/auth/refresh", map[string]string{"refreshToken": refreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rotated := decodeSession(t, rec)
	if rotated["refreshToken"] == refreshToken {
		t.Error("refresh should rotate the token")
	}

	// Replay of the consumed token.
	rec = postJSON(t, h.Refresh, "/auth/refresh", map[string]string{"refreshToken": refreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on replay, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != apperrors.CodeInvalidToken {
		t.Errorf("expected INVALID_TOKEN, got %s", code)
	}
}

func TestRefreshHandlerMissingToken(t *testing.T) {
	h := newTestHandlers(t)

	rec := postJSON(t, h.Refresh, "/auth/refresh", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestLogoutHandler(t *testing.T) {
	h := newTestHandlers(t)

	rec := postJSON(t, h.Register, "/auth/register", map[string]string{
		"email": "student@example.com", "password": "Secret123",
	})
	session := decodeSession(t, rec)
	refreshToken := session["refreshToken"].(string)

	rec = postJSON(t, h.Logout, "/auth/logout", map[string]string{"refreshToken": refreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// The uid cookie must be cleared.
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == LegacyCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected uid cookie to be cleared")
	}

	rec = postJSON(t, h.Refresh, "/auth/refresh", map[string]string{"refreshToken": refreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("token should be revoked after logout, got %d", rec.Code)
	}
}

func TestLogoutHandlerWithoutBody(t *testing.T) {
	h := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	apperrors.HandleFunc(h.Logout).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("logout without a body should succeed, got %d", rec.Code)
	}
}

func TestPasswordResetHandlers(t *testing.T) {
	h := newTestHandlers(t)

	postJSON(t, h.Register, "/auth/register", map[string]string{
		"email": "student@example.com", "password": "Secret123",
	})

	rec := postJSON(t, h.RequestPasswordReset, "/auth/request-password-reset", map[string]string{
		"email": "student@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeSession(t, rec)
	resetToken, _ := resp["resetToken"].(string)
	if resetToken == "" {
		t.Fatal("expected resetToken in dev-mode response")
	}

	rec = postJSON(t, h.ResetPassword, "/auth/reset-password", map[string]string{
		"token": resetToken, "newPassword": "NewSecret456",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, h.Login, "/auth/login", map[string]string{
		"email": "student@example.com", "password": "NewSecret456",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password failed: %d", rec.Code)
	}
}

func TestPasswordResetHandlerUnknownEmail(t *testing.T) {
	h := newTestHandlers(t)

	// Same 200 shape as for a registered address.
	rec := postJSON(t, h.RequestPasswordReset, "/auth/request-password-reset", map[string]string{
		"email": "nobody@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeSession(t, rec)
	if resp["ok"] != true {
		t.Error("expected ok:true")
	}
	if _, ok := resp["resetToken"]; ok {
		t.Error("unknown email must not yield a reset token")
	}
}

func TestResetPasswordHandlerBadToken(t *testing.T) {
	h := newTestHandlers(t)

	rec := postJSON(t, h.ResetPassword, "/auth/reset-password", map[string]string{
		"token": "bogus", "newPassword": "NewSecret456",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
