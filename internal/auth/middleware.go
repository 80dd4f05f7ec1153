package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/edufinance/backend/internal/errors"
)

// CredentialSource tags which of the two credential tiers authenticated a
// request.
type CredentialSource string

const (
	// SourceBearer is a verified access token.
	SourceBearer CredentialSource = "bearer"
	// SourceLegacyCookie is the pre-token uid cookie. It is trusted without
	// a signature check and is a deliberately weaker tier, kept only for
	// backward compatibility.
	SourceLegacyCookie CredentialSource = "cookie"
)

// LegacyCookieName is the pre-token session cookie carrying a raw user ID.
const LegacyCookieName = "uid"

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID int64
	Source CredentialSource
}

// Middleware gates protected routes. Resolution order is strict: a bearer
// token, if present, must verify. A bad bearer never falls back to the
// cookie; only when no Authorization header is sent is the legacy cookie
// consulted.
func Middleware(codec *Codec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := apperrors.GetRequestID(r.Context())

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				identity, err := resolveBearer(codec, authHeader)
				if err != nil {
					apperrors.WriteError(w, requestID, err)
					return
				}
				serveWithIdentity(next, w, r, identity)
				return
			}

			if cookie, err := r.Cookie(LegacyCookieName); err == nil {
				userID, err := strconv.ParseInt(cookie.Value, 10, 64)
				if err != nil || userID <= 0 {
					apperrors.WriteError(w, requestID, apperrors.Unauthorized("invalid session cookie"))
					return
				}
				serveWithIdentity(next, w, r, &Identity{UserID: userID, Source: SourceLegacyCookie})
				return
			}

			apperrors.WriteError(w, requestID, apperrors.Unauthorized("authentication required"))
		})
	}
}

func resolveBearer(codec *Codec, authHeader string) (*Identity, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, apperrors.Unauthorized("invalid authorization header format")
	}

	userID, err := codec.VerifyAccess(parts[1])
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperrors.TokenExpired()
		}
		return nil, apperrors.InvalidToken("invalid access token")
	}

	return &Identity{UserID: userID, Source: SourceBearer}, nil
}

func serveWithIdentity(next http.Handler, w http.ResponseWriter, r *http.Request, identity *Identity) {
	ctx := context.WithValue(r.Context(), identityContextKey, identity)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// GetIdentity returns the identity attached by Middleware, or nil.
func GetIdentity(ctx context.Context) *Identity {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}
