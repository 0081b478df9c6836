package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort    string
	DatabaseURL   string
	JWTSecret     string
	TokenTTLHours string
	Environment   string
	LogLevel      string
}

// Load reads configuration from a .env file when present, falling back to
// system environment variables.
func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenTTLHours: getEnv("TOKEN_TTL_HOURS", "24"),
		Environment:   getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// GetTokenTTL returns the JWT lifetime from environment or the 24 hour default.
func (c *Config) GetTokenTTL() time.Duration {
	if c.TokenTTLHours == "" {
		return 24 * time.Hour
	}

	hours, err := strconv.Atoi(c.TokenTTLHours)
	if err != nil {
		logrus.Warnf("Invalid TOKEN_TTL_HOURS value: %s, using default 24 hours", c.TokenTTLHours)
		return 24 * time.Hour
	}

	return time.Duration(hours) * time.Hour
}

// IsProduction reports whether the service runs in production mode.
// Error responses carry internal detail only when this is false.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
