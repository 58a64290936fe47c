package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Payment struct {
	APIURL        string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
}

type Config struct {
	Port          string
	PostgresURL   string
	DBSchema      string
	KafkaBrokers  []string
	RedisAddr     string
	AuthSecret    string
	Payment       Payment
	StorefrontURL string
	AdminURL      string
	EmailURL      string
	MigrationsDir string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads the process environment. defaultPort differs per binary.
func Load(defaultPort string) (*Config, error) {
	cfg := &Config{
		Port:          getenv("PORT", defaultPort),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		DBSchema:      getenv("DB_SCHEMA", "storefront"),
		KafkaBrokers:  splitList(os.Getenv("KAFKA_BROKERS")),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		AuthSecret:    os.Getenv("AUTH_SECRET"),
		StorefrontURL: os.Getenv("STOREFRONT_SERVICE_URL"),
		AdminURL:      os.Getenv("ADMIN_SERVICE_URL"),
		EmailURL:      os.Getenv("EMAIL_SERVICE_URL"),
		MigrationsDir: getenv("MIGRATIONS_PATH", "migrations"),
		Payment: Payment{
			APIURL:        getenv("PAYMENT_API_URL", "https://api.razorpay.com"),
			KeyID:         os.Getenv("PAYMENT_KEY_ID"),
			KeySecret:     os.Getenv("PAYMENT_KEY_SECRET"),
			WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
			Currency:      strings.ToUpper(getenv("CURRENCY", "INR")),
		},
	}

	var err error
	if cfg.RateLimitRPS, err = strconv.ParseFloat(getenv("RATE_LIMIT_RPS", "2"), 64); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(getenv("RATE_LIMIT_BURST", "5")); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_BURST: %w", err)
	}

	return cfg, nil
}

// Require reports every listed variable that is unset or blank.
func Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
