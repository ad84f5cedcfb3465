package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Alpaca API
	AlpacaKeyID     string
	AlpacaSecretKey string
	AlpacaBaseURL   string
	AlpacaDataURL   string

	// Server
	ListenAddr string
	DBPath     string

	// Bot scheduling
	TickInterval time.Duration
	TickTimeout  time.Duration
	BarTimeframe string

	// Performance
	HTTPTimeout time.Duration
	CacheTTL    time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		// Alpaca API
		AlpacaKeyID:     getEnv("ALPACA_KEY_ID", ""),
		AlpacaSecretKey: getEnv("ALPACA_SECRET_KEY", ""),
		AlpacaBaseURL:   getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
		AlpacaDataURL:   getEnv("ALPACA_DATA_URL", "https://data.alpaca.markets"),

		// Server
		ListenAddr: getEnv("LISTEN_ADDR", ":5001"),
		DBPath:     getEnv("DB_PATH", "portfolio.db"),

		// Bot scheduling
		TickInterval: getEnvDuration("TICK_INTERVAL_MS", 60000) * time.Millisecond,
		TickTimeout:  getEnvDuration("TICK_TIMEOUT_MS", 30000) * time.Millisecond,
		BarTimeframe: getEnv("BAR_TIMEFRAME", "1Hour"),

		// Performance
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT_MS", 10000) * time.Millisecond,
		CacheTTL:    getEnvDuration("CACHE_TTL_MS", 30000) * time.Millisecond,
	}

	// Validate required fields
	if cfg.AlpacaKeyID == "" || cfg.AlpacaSecretKey == "" {
		return nil, fmt.Errorf("ALPACA_KEY_ID and ALPACA_SECRET_KEY must be set")
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue int64) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(parsed)
		}
	}
	return time.Duration(defaultValue)
}
