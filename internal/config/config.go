package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"time"
)

const (
	StoreDriverJSONFile = "jsonfile"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	ServerAddr     string
	FrontendOrigin string

	// Credential store
	StoreDriver string
	StorePath   string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// Tokens
	JWTAccessSecret   string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	RequireEmailVerif bool

	// Rate limiting
	RedisAddr       string
	RateLimitMax    int
	RateLimitWindow time.Duration

	// SMTP (mailer disabled when host is empty)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

func Load() *Config {
	accessTTL, err := time.ParseDuration(getEnvOrDefault("ACCESS_TTL", "15m"))
	if err != nil {
		accessTTL = 15 * time.Minute
	}

	refreshDays, _ := strconv.Atoi(getEnvOrDefault("REFRESH_TTL_DAYS", "7"))
	if refreshDays <= 0 {
		refreshDays = 7
	}

	rateLimitMax, _ := strconv.Atoi(getEnvOrDefault("RATE_LIMIT_MAX", "100"))
	if rateLimitMax <= 0 {
		rateLimitMax = 100
	}

	rateLimitWindow, err := time.ParseDuration(getEnvOrDefault("RATE_LIMIT_WINDOW", "15m"))
	if err != nil {
		rateLimitWindow = 15 * time.Minute
	}

	smtpPort, _ := strconv.Atoi(getEnvOrDefault("SMTP_PORT", "587"))
	requireVerif, _ := strconv.ParseBool(getEnvOrDefault("REQUIRE_EMAIL_VERIFICATION", "false"))

	return &Config{
		ServerAddr:     getEnvOrDefault("SERVER_ADDR", ":4000"),
		FrontendOrigin: getEnvOrDefault("FRONTEND_ORIGIN", "http://localhost:5173"),

		StoreDriver: getEnvOrDefault("STORE_DRIVER", StoreDriverJSONFile),
		StorePath:   getEnvOrDefault("STORE_PATH", "db.json"),
		DBHost:      getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:      getEnvOrDefault("DB_PORT", "5432"),
		DBUser:      getEnvOrDefault("DB_USER", "edufinance"),
		DBPassword:  getEnvOrDefault("DB_PASSWORD", "edufinance_dev_password"),
		DBName:      getEnvOrDefault("DB_NAME", "edufinance"),

		JWTAccessSecret:   getEnvOrDefault("JWT_ACCESS_SECRET", generateDefaultSecret()),
		AccessTTL:         accessTTL,
		RefreshTTL:        time.Duration(refreshDays) * 24 * time.Hour,
		RequireEmailVerif: requireVerif,

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RateLimitMax:    rateLimitMax,
		RateLimitWindow: rateLimitWindow,

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     smtpPort,
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnvOrDefault("SMTP_FROM", "no-reply@edufinance.local"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production"
	}
	return hex.EncodeToString(bytes)
}
