package main

import (
	"log"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/edufinance/backend/internal/api"
	"github.com/edufinance/backend/internal/auth"
	"github.com/edufinance/backend/internal/config"
	"github.com/edufinance/backend/internal/finance"
	"github.com/edufinance/backend/internal/health"
	"github.com/edufinance/backend/internal/mailer"
	"github.com/edufinance/backend/internal/ratelimit"
	"github.com/edufinance/backend/internal/store"
	"github.com/edufinance/backend/internal/store/jsonfile"
	"github.com/edufinance/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()

	var (
		st        store.Store
		healthCfg health.CheckerConfig
	)

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pg, err := postgres.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := pg.Migrate(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		st = pg
		healthCfg.DB = pg.DB()
	default:
		jf, err := jsonfile.Open(cfg.StorePath)
		if err != nil {
			log.Fatalf("Failed to open store file: %v", err)
		}
		st = jf
	}
	defer st.Close()

	codec := auth.NewCodec(cfg.JWTAccessSecret, cfg.AccessTTL)

	var authMailer auth.Mailer
	if cfg.SMTPHost != "" {
		authMailer = mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = ratelimit.NewRedisLimiter(redisClient, "ratelimit:auth:", cfg.RateLimitMax, cfg.RateLimitWindow)
		healthCfg.Redis = redisClient
	}

	authService := auth.NewService(auth.ServiceConfig{
		Store:               st,
		Codec:               codec,
		Mailer:              authMailer,
		RefreshTTL:          cfg.RefreshTTL,
		RequireVerification: cfg.RequireEmailVerif,
	})

	router := api.NewRouter(api.RouterConfig{
		AuthHandlers:    auth.NewHandlers(authService),
		Codec:           codec,
		FinanceHandlers: finance.NewHandlers(st.Users(), st.Transactions()),
		HealthHandler:   health.NewHandler(health.NewChecker(&healthCfg)),
		Limiter:         limiter,
		FrontendOrigin:  cfg.FrontendOrigin,
	})

	log.Printf("Starting server on %s", cfg.ServerAddr)
	if err := http.ListenAndServe(cfg.ServerAddr, router); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
