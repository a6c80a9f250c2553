package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Booking status names accepted by BOOKING_INITIAL_STATUS.
const (
	InitialStatusConfirmed = "CONFIRMED"
	InitialStatusPending   = "PENDING"
)

// Cancellation policies accepted by BOOKING_CANCEL_POLICY.
const (
	// CancelPolicyRetire deletes the booking and leaves the slot unavailable.
	CancelPolicyRetire = "retire"
	// CancelPolicyRelease deletes the booking and frees the slot.
	CancelPolicyRelease = "release"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
	AdminJWTSecret     string

	DatabaseURL      string
	DBMaxConns       int
	DBMinConns       int
	DBConnectTimeout time.Duration
	DBIdleTimeout    time.Duration
	DBQueryTimeout   time.Duration
	DBHealthTimeout  time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	IdempotencyTTL time.Duration

	BookingInitialStatus  string
	BookingPendingTTL     time.Duration
	BookingExpirySchedule string
	BookingCancelPolicy   string
	BookingRateLimitRPS   float64
	BookingRateLimitBurst int

	ScheduleTimezone string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DBMaxConns:       getEnvAsInt("DB_MAX_CONNS", 15),
		DBMinConns:       getEnvAsInt("DB_MIN_CONNS", 0),
		DBConnectTimeout: getEnvAsDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		DBIdleTimeout:    getEnvAsDuration("DB_IDLE_TIMEOUT", 30*time.Second),
		DBQueryTimeout:   getEnvAsDuration("DB_QUERY_TIMEOUT", 8*time.Second),
		DBHealthTimeout:  getEnvAsDuration("DB_HEALTH_TIMEOUT", 2500*time.Millisecond),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		BookingInitialStatus:  strings.ToUpper(strings.TrimSpace(getEnv("BOOKING_INITIAL_STATUS", InitialStatusConfirmed))),
		BookingPendingTTL:     getEnvAsDuration("BOOKING_PENDING_TTL", 2*time.Minute),
		BookingExpirySchedule: getEnv("BOOKING_EXPIRY_SCHEDULE", "@every 1m"),
		BookingCancelPolicy:   strings.ToLower(strings.TrimSpace(getEnv("BOOKING_CANCEL_POLICY", CancelPolicyRetire))),
		BookingRateLimitRPS:   getEnvAsFloat("BOOKING_RATE_LIMIT_RPS", 5),
		BookingRateLimitBurst: getEnvAsInt("BOOKING_RATE_LIMIT_BURST", 20),

		ScheduleTimezone: getEnv("SCHEDULE_TIMEZONE", "UTC"),
	}
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	switch c.BookingInitialStatus {
	case InitialStatusConfirmed, InitialStatusPending:
	default:
		return fmt.Errorf("config: BOOKING_INITIAL_STATUS must be CONFIRMED or PENDING, got %q", c.BookingInitialStatus)
	}
	switch c.BookingCancelPolicy {
	case CancelPolicyRetire, CancelPolicyRelease:
	default:
		return fmt.Errorf("config: BOOKING_CANCEL_POLICY must be retire or release, got %q", c.BookingCancelPolicy)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("config: DB_MAX_CONNS must be positive")
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("config: DB_MIN_CONNS must be between 0 and DB_MAX_CONNS")
	}
	if c.BookingPendingTTL <= 0 {
		return fmt.Errorf("config: BOOKING_PENDING_TTL must be positive")
	}
	return nil
}

// Location resolves ScheduleTimezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("config: SCHEDULE_TIMEZONE %q: %w", c.ScheduleTimezone, err)
	}
	return loc, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
