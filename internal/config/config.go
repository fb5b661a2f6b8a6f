package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port                int
	JWTSecret           string
	DatabaseURL         string
	StripeSecretKey     string
	StripeWebhookSecret string
	CORSOrigins         []string
	AdminEmail          string
	AdminPassword       string
}

// Load reads configuration from environment variables with sensible defaults.
//
// STRIPE_WEBHOOK_SECRET is deliberately not required here: a missing secret
// is reported per-request by the webhook verifier as a 5xx, so the rest of
// the service keeps running while the misdeployment is fixed.
func Load() (*Config, error) {
	port, _ := strconv.Atoi(getEnv("PORT", "4001"))

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	stripeKey := getEnv("STRIPE_SECRET_KEY", "")
	if stripeKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}

	origins := strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:                port,
		JWTSecret:           jwtSecret,
		DatabaseURL:         dbURL,
		StripeSecretKey:     stripeKey,
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		CORSOrigins:         origins,
		AdminEmail:          getEnv("ADMIN_EMAIL", "admin@paysync.dev"),
		AdminPassword:       getEnv("ADMIN_PASSWORD", "admin123"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
