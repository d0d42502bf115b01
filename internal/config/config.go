package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"anoa.com/tutorhub/pkg/database"
	"anoa.com/tutorhub/pkg/mailer"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AppURL         string
	AllowedOrigins string
	JWTSecret      string
	JWTTTL         time.Duration

	DB database.Config

	RedisURL    string
	RabbitMQURL string

	MeiliSearchHost string
	MeiliMasterKey  string

	SMTP mailer.SMTPConfig

	LogLevel string
	LogFile  string

	UrgentCountsTTL  time.Duration
	RateLimitMessage time.Duration

	AdminSeedEmail    string
	AdminSeedPassword string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AppURL:         getEnv("APP_URL", "http://localhost:3000"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		JWTSecret:      os.Getenv("JWT_SECRET"),

		DB: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASS"),
			Name:     getEnv("DB_NAME", "tutorhub"),
			Port:     getEnv("DB_PORT", "5432"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Debug:    getEnv("DB_DEBUG", "false") == "true",
		},

		RedisURL:    os.Getenv("REDIS_URL"),
		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		SMTP: mailer.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("MAIL_FROM", "Tutorhub <no-reply@tutorhub.ng>"),
		},

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		AdminSeedEmail:    getEnv("ADMIN_SEED_EMAIL", "admin@tutorhub.ng"),
		AdminSeedPassword: os.Getenv("ADMIN_SEED_PASSWORD"),
	}

	var err error
	cfg.SMTP.Port, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	cfg.UrgentCountsTTL, err = parseDuration(getEnv("URGENT_COUNTS_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid URGENT_COUNTS_TTL: %w", err)
	}
	cfg.JWTTTL, err = parseDuration(getEnv("JWT_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	cfg.RateLimitMessage, err = parseDuration(getEnv("RATE_LIMIT_MESSAGE", "3s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_MESSAGE: %w", err)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret"
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
