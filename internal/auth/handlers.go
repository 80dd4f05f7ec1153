package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	apperrors "github.com/edufinance/backend/internal/errors"
	"github.com/edufinance/backend/internal/store"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resetRequestBody struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	OK                    bool      `json:"ok"`
	UserID                int64     `json:"userId"`
	Email                 string    `json:"email"`
	Name                  string    `json:"name"`
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
	VerifyToken           string    `json:"verifyToken,omitempty"`
}

type refreshResponse struct {
	OK                    bool      `json:"ok"`
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

type resetTokenResponse struct {
	OK                  bool       `json:"ok"`
	ResetToken          string     `json:"resetToken,omitempty"`
	ResetTokenExpiresAt *time.Time `json:"resetTokenExpiresAt,omitempty"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Handlers exposes the session lifecycle over HTTP. All handlers return
// errors; the router wraps them with apperrors.HandleFunc.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return apperrors.ValidationError("email and password are required")
	}
	if !emailRegex.MatchString(req.Email) {
		return apperrors.ValidationError("invalid email format")
	}
	if len(req.Password) < 8 {
		return apperrors.ValidationError("password must be at least 8 characters")
	}

	session, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return apperrors.EmailExists()
		}
		return apperrors.InternalError("failed to create user").WithCause(err)
	}

	setLegacyCookie(w, session.UserID)
	writeSession(w, r, http.StatusCreated, session)
	return nil
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return apperrors.ValidationError("email and password are required")
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return apperrors.InvalidCredentials()
		case errors.Is(err, ErrEmailNotVerified):
			return apperrors.EmailNotVerified()
		}
		return apperrors.InternalError("login failed").WithCause(err)
	}

	setLegacyCookie(w, session.UserID)
	writeSession(w, r, http.StatusOK, session)
	return nil
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) error {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if req.RefreshToken == "" {
		return apperrors.ValidationError("refresh token is required")
	}

	session, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
			return apperrors.InvalidToken("invalid or expired refresh token")
		}
		return apperrors.InternalError("token refresh failed").WithCause(err)
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusOK, refreshResponse{
		OK:                    true,
		AccessToken:           session.AccessToken,
		RefreshToken:          session.RefreshToken,
		RefreshTokenExpiresAt: session.RefreshExpiresAt,
	})
	return nil
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) error {
	var req logoutRequest
	// The body is optional; logout must succeed without one.
	_ = json.NewDecoder(r.Body).Decode(&req)

	var cookieUserID int64
	if cookie, err := r.Cookie(LegacyCookieName); err == nil {
		cookieUserID, _ = strconv.ParseInt(cookie.Value, 10, 64)
	}

	h.service.Logout(r.Context(), cookieUserID, req.RefreshToken)

	clearLegacyCookie(w)
	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusOK, okResponse{OK: true})
	return nil
}

func (h *Handlers) RequestPasswordReset(w http.ResponseWriter, r *http.Request) error {
	var req resetRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if req.Email == "" {
		return apperrors.ValidationError("email is required")
	}

	reset, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		return apperrors.InternalError("password reset request failed").WithCause(err)
	}

	resp := resetTokenResponse{OK: true}
	if reset.Token != "" {
		resp.ResetToken = reset.Token
		resp.ResetTokenExpiresAt = &reset.ExpiresAt
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusOK, resp)
	return nil
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) error {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if req.Token == "" || req.NewPassword == "" {
		return apperrors.ValidationError("token and newPassword are required")
	}
	if len(req.NewPassword) < 8 {
		return apperrors.ValidationError("password must be at least 8 characters")
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
			return apperrors.BadRequest("invalid or expired reset token")
		}
		return apperrors.InternalError("password reset failed").WithCause(err)
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusOK, okResponse{OK: true})
	return nil
}

func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) error {
	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if req.Token == "" {
		return apperrors.ValidationError("token is required")
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
			return apperrors.BadRequest("invalid or expired verification token")
		}
		return apperrors.InternalError("email verification failed").WithCause(err)
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusOK, okResponse{OK: true})
	return nil
}

func writeSession(w http.ResponseWriter, r *http.Request, status int, session *Session) {
	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteJSON(w, requestID, status, sessionResponse{
		OK:                    true,
		UserID:                session.UserID,
		Email:                 session.Email,
		Name:                  session.Name,
		AccessToken:           session.AccessToken,
		RefreshToken:          session.RefreshToken,
		RefreshTokenExpiresAt: session.RefreshExpiresAt,
		VerifyToken:           session.VerifyToken,
	})
}

// setLegacyCookie sets the pre-token uid cookie. It is non-authoritative for
// bearer clients but kept so older clients keep working.
func setLegacyCookie(w http.ResponseWriter, userID int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     LegacyCookieName,
		Value:    strconv.FormatInt(userID, 10),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearLegacyCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     LegacyCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
