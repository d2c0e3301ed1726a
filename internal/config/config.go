// Package config provides configuration management for the quest gateway.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration so the service starts safely.
//
// The package supports multiple database backends (SQLite and PostgreSQL),
// an optional Redis backend for multi-instance rate limiting and event
// relaying, JWT-based identity resolution, and credentials for the managed
// voice and chat services the gateway proxies to.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Database Configuration:
//   - DATABASE_TYPE: Database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./quest_gateway.db)
//   - DATABASE_URL: PostgreSQL connection string (required if using PostgreSQL)
//
// Redis Configuration (optional, enables cross-instance limiter/relay):
//   - REDIS_ENABLED: Use Redis-backed rate limiting and event relay (default: false)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Identity:
//   - JWT_SECRET: HMAC secret for verifying bearer tokens (optional; when
//     unset, only the X-User-Id header is honored)
//
// Upstream Services:
//   - HUME_API_KEY / HUME_SECRET_KEY: Hume EVI credentials for voice tokens
//   - HUME_CONFIG_ID: EVI configuration returned to voice clients
//   - ANTHROPIC_API_KEY: API key for the chat completion proxy
//   - CHAT_MODEL: Model used by the chat proxy (default: claude-haiku-4-5-20251001)
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED: Enable rate limiting (default: true)
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration values for the quest gateway. All string
// fields correspond to environment variables that can be set to override the
// default values.
//
// The configuration is loaded using the Load() function and should be
// validated using the Validate() method before use.
type Config struct {
	// Application settings
	Port     string // Server port number
	LogLevel string // Logging level (debug, info, warn, error)

	// Database configuration
	DatabaseType string // Database type: "sqlite" or "postgres"
	DatabasePath string // Path to SQLite database file
	DatabaseURL  string // PostgreSQL connection string

	// Redis configuration for multi-instance deployments
	RedisEnabled  bool   // Whether the Redis limiter store and event relay are used
	RedisAddress  string // Redis server address (host:port)
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size

	// Identity configuration
	JWTSecret string // Secret for verifying bearer tokens (optional)

	// Upstream service credentials
	HumeAPIKey      string // Hume EVI API key
	HumeSecretKey   string // Hume EVI secret key
	HumeConfigID    string // Hume EVI configuration identifier
	AnthropicAPIKey string // API key for the chat completion proxy
	ChatModel       string // Model used for chat completions

	// Rate limiting configuration
	RateLimitEnabled bool // Whether rate limiting is enforced
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding default
// value is used.
//
// This function does not validate the configuration - call Validate() on the
// returned Config to ensure all required values are properly set and valid.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseType: getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath: getEnv("DATABASE_PATH", "./quest_gateway.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", false),
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		HumeAPIKey:      getEnv("HUME_API_KEY", ""),
		HumeSecretKey:   getEnv("HUME_SECRET_KEY", ""),
		HumeConfigID:    getEnv("HUME_CONFIG_ID", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		ChatModel:       getEnv("CHAT_MODEL", "claude-haiku-4-5-20251001"),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid.
//
// This method checks:
//   - Field format validation (ports, database numbers)
//   - Cross-field dependencies (PostgreSQL and Redis requirements)
//   - Security requirements (JWT secret length when provided)
//
// The application should call this method after loading configuration and
// before starting to ensure safe operation.
func (c *Config) Validate() error {
	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	// Validate database type
	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
		// Valid database types
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	// Validate PostgreSQL config if using PostgreSQL
	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when using PostgreSQL")
		}
	}

	// Validate Redis config if enabled
	if c.RedisEnabled {
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when Redis is enabled")
		}
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	// Validate JWT secret length when provided
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}

	// The voice token endpoint needs both halves of the Hume credential pair
	if (c.HumeAPIKey == "") != (c.HumeSecretKey == "") {
		return fmt.Errorf("HUME_API_KEY and HUME_SECRET_KEY must be set together")
	}

	return nil
}
