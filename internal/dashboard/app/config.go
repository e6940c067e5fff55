package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Session secret material; either inline or read from a file. When both
	// are empty an ephemeral secret is generated and sessions die on restart.
	SessionSecret     string
	SessionSecretFile string

	SessionTTL  time.Duration // Optional: session validity window (default: 24h)
	StateMaxAge time.Duration // Optional: handshake state lifetime (default: 10m)

	WhopClientID     string // Required: platform OAuth client ID
	WhopClientSecret string // Required: platform OAuth client secret
	WhopAuthorizeURL string // Optional: platform authorize endpoint
	WhopAPIURL       string // Optional: platform API root
	DashboardURL     string // Optional: post-handshake landing page

	DatabaseFile         string        // Optional: path to SQLite database file (default: ./dashboard.db)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		SessionSecretFile: os.Getenv("SESSION_SECRET_FILE"),
		SessionTTL:        getEnvDurationOrDefault("SESSION_TTL", 24*time.Hour),
		StateMaxAge:       getEnvDurationOrDefault("STATE_MAX_AGE", 10*time.Minute),

		WhopClientID:     os.Getenv("WHOP_CLIENT_ID"),
		WhopClientSecret: os.Getenv("WHOP_CLIENT_SECRET"),
		WhopAuthorizeURL: getEnvOrDefault("WHOP_AUTHORIZE_URL", "https://whop.com/oauth"),
		WhopAPIURL:       getEnvOrDefault("WHOP_API_URL", "https://api.whop.com"),
		DashboardURL:     getEnvOrDefault("DASHBOARD_URL", "/"),

		DatabaseFile:         getEnvOrDefault("DATABASE_FILE", "dashboard.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
