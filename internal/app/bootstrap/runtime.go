package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/doctor-booking/internal/bookings"
	appconfig "github.com/wolfman30/doctor-booking/internal/config"
	"github.com/wolfman30/doctor-booking/internal/idempotency"
	"github.com/wolfman30/doctor-booking/internal/store"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available; idempotency keys disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildIdempotencyStore returns the Idempotency-Key store when Redis is available.
func BuildIdempotencyStore(redisClient *redis.Client, cfg *appconfig.Config) *idempotency.Store {
	if redisClient == nil || cfg == nil {
		return nil
	}
	return idempotency.NewStore(redisClient, cfg.IdempotencyTTL)
}

// StoreConfig maps the DB_* settings onto the store.
func StoreConfig(cfg *appconfig.Config) store.Config {
	return store.Config{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       int32(cfg.DBMaxConns),
		MinConns:       int32(cfg.DBMinConns),
		ConnectTimeout: cfg.DBConnectTimeout,
		IdleTimeout:    cfg.DBIdleTimeout,
		QueryTimeout:   cfg.DBQueryTimeout,
		HealthTimeout:  cfg.DBHealthTimeout,
	}
}

// BookingOptions maps the BOOKING_* settings onto the booking service.
func BookingOptions(cfg *appconfig.Config, loc *time.Location) bookings.Options {
	policy := bookings.CancelRetire
	if cfg.BookingCancelPolicy == appconfig.CancelPolicyRelease {
		policy = bookings.CancelRelease
	}
	status := bookings.StatusConfirmed
	if cfg.BookingInitialStatus == appconfig.InitialStatusPending {
		status = bookings.StatusPending
	}
	return bookings.Options{InitialStatus: status, CancelPolicy: policy, Location: loc}
}
