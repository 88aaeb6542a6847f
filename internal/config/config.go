package config

import (
	"os"
	"strconv"
	"time"

	"kassa/internal/cache"
	"kassa/internal/database"
	"kassa/internal/embed"
	"kassa/internal/messaging"
	"kassa/internal/payment"
	"kassa/internal/reservation"
)

// Config holds the full application configuration.
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// Checkout behaviour
	PollInterval    time.Duration // status polling for async payment methods
	SessionGrace    time.Duration // snapshot TTL beyond the reservation deadline
	DefaultLanguage string

	Database    database.Config
	Redis       cache.Config
	NATS        messaging.Config
	Reservation reservation.Config
	Payment     payment.Config
	Embedding   embed.Config
}

// Load reads the configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		PollInterval:    time.Duration(getEnvInt("STATUS_POLL_INTERVAL_SEC", 5)) * time.Second,
		SessionGrace:    time.Duration(getEnvInt("SESSION_GRACE_MIN", 10)) * time.Minute,
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "kassa"),
			Password:           getEnv("DB_PASSWORD", "kassa123"),
			DBName:             getEnv("DB_NAME", "kassa"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		Redis: cache.Config{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "checkout:session:"),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "kassa"),
			ClientID:  getEnv("NATS_CLIENT_ID", "kassa-api"),
		},

		Reservation: reservation.Config{
			BaseURL: getEnv("RESERVATION_BACKEND_URL", "http://localhost:8080"),
			APIKey:  getEnv("RESERVATION_BACKEND_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("RESERVATION_TIMEOUT_SEC", 30)) * time.Second,
		},

		Payment: payment.Config{
			BaseURL:    getEnv("PAYMENT_GATEWAY_URL", "http://localhost:8090"),
			MerchantID: getEnv("PAYMENT_MERCHANT_ID", ""),
			Secret:     getEnv("PAYMENT_SECRET", ""),
			Timeout:    time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
		},

		Embedding: embed.Config{
			Timeout: time.Duration(getEnvInt("EMBEDDING_TIMEOUT_SEC", 5)) * time.Second,
		},
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable value or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
