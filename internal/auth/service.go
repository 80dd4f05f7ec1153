package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/edufinance/backend/internal/logger"
	"github.com/edufinance/backend/internal/metrics"
	"github.com/edufinance/backend/internal/store"
)

// Mailer delivers tokens out-of-band. When no mailer is configured the
// service falls back to returning tokens in the response (dev mode).
type Mailer interface {
	SendPasswordReset(to, token string, expiresAt time.Time) error
	SendEmailVerification(to, token string, expiresAt time.Time) error
}

// Session is the result of a successful register, login, or refresh.
type Session struct {
	UserID           int64
	Email            string
	Name             string
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time

	// VerifyToken is set on register only when email verification is
	// required and no mailer is configured.
	VerifyToken string
}

// ResetRequest is the result of RequestPasswordReset. Token is empty when the
// email is unknown or the token was delivered by mail.
type ResetRequest struct {
	Token     string
	ExpiresAt time.Time
}

// Service orchestrates the credential and session lifecycle against the
// token codec and the credential store. It caches nothing between requests;
// the store owns all durable state.
type Service struct {
	store      store.Store
	codec      *Codec
	mailer     Mailer
	refreshTTL time.Duration

	// requireVerification makes register create unverified accounts that
	// must confirm via VerifyEmail before login succeeds. Off by default:
	// accounts are verified on creation.
	requireVerification bool

	log *logger.Logger
}

type ServiceConfig struct {
	Store               store.Store
	Codec               *Codec
	Mailer              Mailer
	RefreshTTL          time.Duration
	RequireVerification bool
}

func NewService(cfg ServiceConfig) *Service {
	refreshTTL := cfg.RefreshTTL
	if refreshTTL == 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &Service{
		store:               cfg.Store,
		codec:               cfg.Codec,
		mailer:              cfg.Mailer,
		refreshTTL:          refreshTTL,
		requireVerification: cfg.RequireVerification,
		log:                 logger.Default().WithComponent("auth"),
	}
}

// Register creates a user and starts their first session. Returns
// store.ErrEmailExists when the email is already taken (case-insensitive).
func (s *Service) Register(ctx context.Context, email, password, name string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	displayName := strings.TrimSpace(name)
	if displayName == "" {
		displayName = deriveName(email)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &store.User{
		Name:          displayName,
		Email:         email,
		PasswordHash:  string(passwordHash),
		EmailVerified: !s.requireVerification,
		CreatedAt:     time.Now(),
	}

	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	if s.requireVerification {
		verifyToken, err := s.issueVerificationToken(ctx, user)
		if err != nil {
			return nil, err
		}
		session.VerifyToken = verifyToken
	}

	metrics.Default().IncCounter("auth_registrations_total")
	s.log.Info(ctx, "user registered", map[string]interface{}{"user_id": user.ID})

	return session, nil
}

// Login authenticates an email/password pair and starts a new session.
// Existing sessions for the user are left untouched.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	metrics.Default().IncCounter("auth_logins_total")

	return session, nil
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// access/refresh pair is minted for the same user. Each refresh token is
// single-use; a replay finds no record and fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	tokenHash := HashToken(refreshToken)
	tokens := s.store.RefreshTokens()

	record, err := tokens.GetByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if time.Now().After(record.ExpiresAt) {
		// Lazy cleanup of the stale record before failing.
		if err := tokens.Delete(ctx, tokenHash); err != nil && !errors.Is(err, store.ErrTokenNotFound) {
			s.log.Error(ctx, "failed to delete expired refresh token", err)
		}
		return nil, ErrTokenExpired
	}

	// Conditional delete: of two concurrent refreshes presenting the same
	// token, exactly one observes the row and wins the rotation.
	if err := tokens.Delete(ctx, tokenHash); err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	user, err := s.store.Users().GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	metrics.Default().IncCounter("auth_refreshes_total")

	return session, nil
}

// Logout revokes sessions. A legacy cookie user ID revokes every session for
// that user; an explicit refresh token revokes just that one. Both are
// best-effort and idempotent: absence of a record is not an error.
func (s *Service) Logout(ctx context.Context, cookieUserID int64, refreshToken string) {
	tokens := s.store.RefreshTokens()

	if cookieUserID > 0 {
		if err := tokens.DeleteForUser(ctx, cookieUserID); err != nil {
			s.log.Error(ctx, "failed to revoke user sessions", err, map[string]interface{}{"user_id": cookieUserID})
		}
	}

	if refreshToken != "" {
		if err := tokens.Delete(ctx, HashToken(refreshToken)); err != nil && !errors.Is(err, store.ErrTokenNotFound) {
			s.log.Error(ctx, "failed to revoke refresh token", err)
		}
	}
}

// RequestPasswordReset issues a one-hour reset token for the account, if one
// exists. The result never reveals whether the email is registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (*ResetRequest, error) {
	user, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return &ResetRequest{}, nil
		}
		return nil, err
	}

	token, err := s.codec.NewResetToken()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(ResetTokenTTL)
	record := &store.ActionToken{
		TokenHash: HashToken(token),
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}
	if err := s.store.ResetTokens().Create(ctx, record); err != nil {
		return nil, err
	}

	metrics.Default().IncCounter("auth_reset_requests_total")

	if s.mailer != nil {
		// Delivery failures are logged, not surfaced: a distinct status
		// here would leak which emails are registered.
		if err := s.mailer.SendPasswordReset(user.Email, token, expiresAt); err != nil {
			s.log.Error(ctx, "failed to send password reset mail", err, map[string]interface{}{"user_id": user.ID})
		}
		return &ResetRequest{}, nil
	}

	return &ResetRequest{Token: token, ExpiresAt: expiresAt}, nil
}

// ResetPassword consumes a reset token and replaces the user's password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	tokens := s.store.ResetTokens()
	tokenHash := HashToken(token)

	record, err := tokens.GetByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if time.Now().After(record.ExpiresAt) {
		if err := tokens.Delete(ctx, tokenHash); err != nil && !errors.Is(err, store.ErrTokenNotFound) {
			s.log.Error(ctx, "failed to delete expired reset token", err)
		}
		return ErrTokenExpired
	}

	// Consume before updating so the token is single-use even under a
	// concurrent replay.
	if err := tokens.Delete(ctx, tokenHash); err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), BcryptCost)
	if err != nil {
		return err
	}

	if err := s.store.Users().UpdatePassword(ctx, record.UserID, string(passwordHash)); err != nil {
		return err
	}

	metrics.Default().IncCounter("auth_password_resets_total")
	s.log.Info(ctx, "password reset", map[string]interface{}{"user_id": record.UserID})

	return nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	tokens := s.store.VerificationTokens()
	tokenHash := HashToken(token)

	record, err := tokens.GetByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if time.Now().After(record.ExpiresAt) {
		if err := tokens.Delete(ctx, tokenHash); err != nil && !errors.Is(err, store.ErrTokenNotFound) {
			s.log.Error(ctx, "failed to delete expired verification token", err)
		}
		return ErrTokenExpired
	}

	if err := tokens.Delete(ctx, tokenHash); err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	return s.store.Users().SetEmailVerified(ctx, record.UserID, true)
}

// GetUser looks up a user by ID.
func (s *Service) GetUser(ctx context.Context, id int64) (*store.User, error) {
	return s.store.Users().GetByID(ctx, id)
}

// startSession mints an access/refresh pair and persists the refresh record.
func (s *Service) startSession(ctx context.Context, user *store.User) (*Session, error) {
	accessToken, err := s.codec.IssueAccess(user.ID)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.codec.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := &store.RefreshToken{
		TokenHash: HashToken(refreshToken),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.store.RefreshTokens().Create(ctx, record); err != nil {
		return nil, err
	}

	return &Session{
		UserID:           user.ID,
		Email:            user.Email,
		Name:             user.Name,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *Service) issueVerificationToken(ctx context.Context, user *store.User) (string, error) {
	token, err := s.codec.NewResetToken()
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(VerificationTokenTTL)
	record := &store.ActionToken{
		TokenHash: HashToken(token),
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}
	if err := s.store.VerificationTokens().Create(ctx, record); err != nil {
		return "", err
	}

	if s.mailer != nil {
		if err := s.mailer.SendEmailVerification(user.Email, token, expiresAt); err != nil {
			s.log.Error(ctx, "failed to send verification mail", err, map[string]interface{}{"user_id": user.ID})
		}
		return "", nil
	}

	return token, nil
}

var nameCaser = cases.Title(language.English)

// deriveName guesses a display name from the email local-part: dots and
// underscores become spaces, words are title-cased.
func deriveName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.NewReplacer(".", " ", "_", " ").Replace(local)
	local = strings.TrimSpace(local)
	if local == "" {
		return "User"
	}
	return nameCaser.String(local)
}
