package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Storefront
	AllowedOrigins []string

	// External services
	ViaCEPBaseURL  string
	GatewayBaseURL string
	GatewayToken   string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Caches / sessions
	CEPCacheTTL time.Duration
	SessionTTL  time.Duration

	// Pricing
	YearlyDiscountFactor float64

	// Observability
	OTLPEndpoint string

	// Database (empty = in-memory stores)
	DatabaseURL    string
	MigrationsPath string

	// JWT / Auth
	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AllowedOrigins: []string{getEnv("STOREFRONT_ORIGIN", "https://www.opadata.com.br")},

		ViaCEPBaseURL:  getEnv("VIACEP_BASE_URL", "https://viacep.com.br"),
		GatewayBaseURL: getEnv("PAYMENT_GATEWAY_URL", "https://api.mercadopago.com"),
		GatewayToken:   getEnv("PAYMENT_GATEWAY_TOKEN", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CEPCacheTTL: getEnvDuration("CEP_CACHE_TTL", 24*time.Hour),
		SessionTTL:  getEnvDuration("CHECKOUT_SESSION_TTL", 2*time.Hour),

		// 0.85 charges 85% of the annual total (the 15% yearly discount).
		YearlyDiscountFactor: getEnvFloat("YEARLY_DISCOUNT_FACTOR", 0.85),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		JWTSecret:     getEnv("JWT_SECRET", "checkout-default-dev-secret-change-me"),
		JWTAccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
