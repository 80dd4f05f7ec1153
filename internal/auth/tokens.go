package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	ResetTokenTTL          = time.Hour
	VerificationTokenTTL   = 15 * time.Minute
	BcryptCost             = 12

	refreshTokenBytes = 32 // 256 bits of entropy
	resetTokenBytes   = 24 // 192 bits of entropy
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// Claims is the access-token payload. The uid claim is the only assertion an
// access token carries; possession is proof of identity until expiry.
type Claims struct {
	UID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens and generates the opaque token
// families. It holds no state beyond the signing secret.
type Codec struct {
	secret    []byte
	accessTTL time.Duration
}

func NewCodec(secret string, accessTTL time.Duration) *Codec {
	return &Codec{
		secret:    []byte(secret),
		accessTTL: accessTTL,
	}
}

// AccessTTL returns the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// IssueAccess produces a signed access token for userID.
func (c *Codec) IssueAccess(userID int64) (string, error) {
	now := time.Now()
	claims := &Claims{
		UID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "edufinance",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// VerifyAccess validates signature and expiry and returns the embedded user
// ID. Any failure mode collapses to ErrInvalidToken or ErrTokenExpired.
func (c *Codec) VerifyAccess(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}
	if claims.UID == 0 {
		return 0, ErrInvalidToken
	}

	return claims.UID, nil
}

// NewRefreshToken generates an opaque refresh token. It carries no claims; it
// is a capability validated only by store lookup.
func (c *Codec) NewRefreshToken() (string, error) {
	return randomToken(refreshTokenBytes)
}

// NewResetToken generates an opaque token for the password-reset and
// email-verification flows.
func (c *Codec) NewResetToken() (string, error) {
	return randomToken(resetTokenBytes)
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the hex SHA-256 of an opaque token. Only hashes are
// persisted, so a leaked store never yields usable credentials.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
