package api

import (
	"net/http"

	"github.com/edufinance/backend/internal/auth"
	apperrors "github.com/edufinance/backend/internal/errors"
	"github.com/edufinance/backend/internal/finance"
	"github.com/edufinance/backend/internal/health"
	"github.com/edufinance/backend/internal/logger"
	"github.com/edufinance/backend/internal/metrics"
	"github.com/edufinance/backend/internal/ratelimit"
)

type Router struct {
	mux     *http.ServeMux
	handler http.Handler
}

type RouterConfig struct {
	AuthHandlers    *auth.Handlers
	Codec           *auth.Codec
	FinanceHandlers *finance.Handlers
	HealthHandler   *health.Handler
	Limiter         ratelimit.Limiter
	FrontendOrigin  string
}

func NewRouter(cfg RouterConfig) *Router {
	r := &Router{mux: http.NewServeMux()}
	r.setupRoutes(cfg)

	// Outermost first: request ID, then logging, recovery, metrics, CORS.
	handler := http.Handler(r.mux)
	handler = corsMiddleware(cfg.FrontendOrigin)(handler)
	handler = metrics.Default().Middleware(handler)
	handler = logger.RecoveryMiddleware(handler)
	handler = logger.LoggingMiddleware(handler)
	handler = apperrors.RequestIDMiddleware(handler)
	r.handler = handler

	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) setupRoutes(cfg RouterConfig) {
	r.mux.HandleFunc("GET /{$}", rootHandler)

	// Health and metrics
	r.mux.HandleFunc("GET /health", cfg.HealthHandler.HealthHandler)
	r.mux.HandleFunc("GET /health/live", cfg.HealthHandler.LivenessHandler)
	r.mux.HandleFunc("GET /health/ready", cfg.HealthHandler.ReadinessHandler)
	r.mux.Handle("GET /metrics", metrics.Default().Handler())

	// Auth routes (rate-limited, no auth required)
	limited := ratelimit.Middleware(cfg.Limiter)
	authRoute := func(pattern string, h apperrors.Handler) {
		r.mux.Handle(pattern, limited(apperrors.HandleFunc(h)))
	}
	authRoute("POST /auth/register", cfg.AuthHandlers.Register)
	authRoute("POST /auth/login", cfg.AuthHandlers.Login)
	authRoute("POST /auth/refresh", cfg.AuthHandlers.Refresh)
	authRoute("POST /auth/logout", cfg.AuthHandlers.Logout)
	authRoute("POST /auth/request-password-reset", cfg.AuthHandlers.RequestPasswordReset)
	authRoute("POST /auth/reset-password", cfg.AuthHandlers.ResetPassword)
	authRoute("POST /auth/verify-email", cfg.AuthHandlers.VerifyEmail)

	// Protected routes
	protect := auth.Middleware(cfg.Codec)
	protected := func(pattern string, h apperrors.Handler) {
		r.mux.Handle(pattern, protect(apperrors.HandleFunc(h)))
	}
	protected("GET /transactions", cfg.FinanceHandlers.List)
	protected("POST /transactions", cfg.FinanceHandlers.Create)
	protected("DELETE /transactions/{id}", cfg.FinanceHandlers.Delete)
	protected("GET /balance", cfg.FinanceHandlers.Balance)
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("EduFinance backend is running!\n"))
}

// corsMiddleware allows the configured frontend origin with credentials,
// mirroring the cors() setup the SPA expects.
func corsMiddleware(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
