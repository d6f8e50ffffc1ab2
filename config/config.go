package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the citifix service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Auth configuration
	JWTSecret   string
	TokenExpiry time.Duration

	// Escalation configuration
	EscalationThreshold    int
	ResolutionRewardPoints int
	NotifyTimeout          time.Duration

	// Telegram notifier configuration
	TelegramBotToken string
	TelegramChatID   int64

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBName:     getEnv("DB_NAME", "citifix"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Auth defaults
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenExpiry: getDurationEnv("TOKEN_EXPIRY", 24*time.Hour),

		// Escalation defaults. The threshold is deliberately configuration,
		// not a literal, so deployments can tune when a complaint goes public.
		EscalationThreshold:    getIntEnv("ESCALATION_THRESHOLD", 20),
		ResolutionRewardPoints: getIntEnv("RESOLUTION_REWARD_POINTS", 10),
		NotifyTimeout:          getDurationEnv("NOTIFY_TIMEOUT", 30*time.Second),

		// Telegram defaults
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getInt64Env("TELEGRAM_CHAT_ID", 0),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64Env gets an int64 environment variable or returns a default value
func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
