package ratelimit

import (
	"net/http"

	apperrors "github.com/edufinance/backend/internal/errors"
	"github.com/edufinance/backend/internal/logger"
)

// Middleware enforces the limiter per client IP. Limiter failures fail open:
// an unreachable Redis must not take authentication down with it.
func Middleware(limiter Limiter) func(http.Handler) http.Handler {
	log := logger.Default().WithComponent("ratelimit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), logger.ClientIP(r))
			if err != nil {
				log.Warn(r.Context(), "rate limiter unavailable, failing open", map[string]interface{}{
					"error": err.Error(),
				})
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				requestID := apperrors.GetRequestID(r.Context())
				apperrors.WriteError(w, requestID, apperrors.RateLimited())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
