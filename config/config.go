package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the survey service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Central reporting backend
	BackendURL      string
	BackendTimeoutS int
	UploadTimeoutS  int

	// Draft persistence policy
	DraftTTLHours   int
	DraftDebounceMS int

	// Geographic bounding box for accepted GPS locations.
	// Defaults cover Thailand.
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// Load loads configuration from environment variables
func Load() *Config {
	// Optional .env for local runs; env vars win.
	_ = godotenv.Load()

	config := &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBName:     getEnv("DB_NAME", "survey"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Backend defaults
		BackendURL:      getEnv("BACKEND_URL", "http://reporting-backend:8080"),
		BackendTimeoutS: getIntEnv("BACKEND_TIMEOUT_SECONDS", 10),
		UploadTimeoutS:  getIntEnv("UPLOAD_TIMEOUT_SECONDS", 30),

		// Draft defaults
		DraftTTLHours:   getIntEnv("DRAFT_TTL_HOURS", 24),
		DraftDebounceMS: getIntEnv("DRAFT_DEBOUNCE_MS", 1000),

		LatMin: getFloatEnv("GPS_LAT_MIN", 5.0),
		LatMax: getFloatEnv("GPS_LAT_MAX", 21.0),
		LonMin: getFloatEnv("GPS_LON_MIN", 97.0),
		LonMax: getFloatEnv("GPS_LON_MAX", 106.0),
	}

	return config
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

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
