package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the complaint service
type Config struct {
	// HTTP server configuration
	Port string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Geolocation configuration
	GeoAPIURL           string
	GeoRequestTimeout   time.Duration
	GeoMaxAttempts      int
	GeoRetryBackoff     time.Duration
	GeoBreakerThreshold int
	GeoBreakerCooldown  time.Duration
	GeoCacheTTL         time.Duration

	// Redis configuration; empty host disables the geolocation cache
	RedisHost string
	RedisPort string

	// RabbitMQ configuration; empty host disables event publishing
	RabbitMQHost     string
	RabbitMQPort     string
	RabbitMQUser     string
	RabbitMQPassword string
	RabbitMQExchange string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "complaints"),

		GeoAPIURL:           getEnv("GEO_API_URL", "http://ip-api.com"),
		GeoRequestTimeout:   getDurationEnv("GEO_REQUEST_TIMEOUT", 2*time.Second),
		GeoMaxAttempts:      getIntEnv("GEO_MAX_ATTEMPTS", 3),
		GeoRetryBackoff:     getDurationEnv("GEO_RETRY_BACKOFF", 200*time.Millisecond),
		GeoBreakerThreshold: getIntEnv("GEO_BREAKER_THRESHOLD", 5),
		GeoBreakerCooldown:  getDurationEnv("GEO_BREAKER_COOLDOWN", 30*time.Second),
		GeoCacheTTL:         getDurationEnv("GEO_CACHE_TTL", 24*time.Hour),

		RedisHost: getEnv("REDIS_HOST", ""),
		RedisPort: getEnv("REDIS_PORT", "6379"),

		RabbitMQHost:     getEnv("AMQP_HOST", ""),
		RabbitMQPort:     getEnv("AMQP_PORT", "5672"),
		RabbitMQUser:     getEnv("AMQP_USER", "guest"),
		RabbitMQPassword: getEnv("AMQP_PASSWORD", "guest"),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "complaint_exchange"),
	}
}

// DSN constructs the MySQL data source name
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// RedisAddr constructs the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// RabbitMQURL constructs the AMQP URL from individual components
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s", c.RabbitMQUser, c.RabbitMQPassword, c.RabbitMQHost, c.RabbitMQPort)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}
