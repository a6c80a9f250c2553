package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/doctor-booking/internal/admin"
	"github.com/wolfman30/doctor-booking/internal/api/router"
	"github.com/wolfman30/doctor-booking/internal/bookings"
	appconfig "github.com/wolfman30/doctor-booking/internal/config"
	"github.com/wolfman30/doctor-booking/internal/doctors"
	httpmiddleware "github.com/wolfman30/doctor-booking/internal/http/middleware"
	"github.com/wolfman30/doctor-booking/internal/observability/metrics"
	"github.com/wolfman30/doctor-booking/internal/schedule"
	"github.com/wolfman30/doctor-booking/internal/slots"
	"github.com/wolfman30/doctor-booking/internal/store"
	"github.com/wolfman30/doctor-booking/internal/sweeper"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

// App is the assembled service: HTTP handler plus the resources shutdown must release.
type App struct {
	Handler  http.Handler
	Bookings *bookings.Service
	Sweeper  *sweeper.Sweeper

	store  *store.Store
	redis  *redis.Client
	logger *logging.Logger
}

// NewApp wires services and routes around an open store. redisClient may be nil.
func NewApp(cfg *appconfig.Config, st *store.Store, redisClient *redis.Client, reg *prometheus.Registry, logger *logging.Logger) (*App, error) {
	if cfg == nil || st == nil {
		return nil, fmt.Errorf("bootstrap: config and store are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	m := metrics.NewBookingMetrics(reg)
	doctorSvc := doctors.NewService(st, logger)
	slotSvc := slots.NewService(st, logger)
	bookingSvc := bookings.NewService(st, m, BookingOptions(cfg, loc), logger)
	scheduleSvc := schedule.NewService(st, m, loc, logger)

	sw, err := sweeper.New(bookingSvc, cfg.BookingExpirySchedule, cfg.BookingPendingTTL, logger)
	if err != nil {
		return nil, err
	}

	handler := router.New(&router.Config{
		Logger:             logger,
		Doctors:            doctors.NewHandler(doctorSvc, logger),
		Slots:              slots.NewHandler(slotSvc, loc, logger),
		Bookings:           bookings.NewHandler(bookingSvc, cfg.BookingPendingTTL, logger),
		Schedule:           schedule.NewHandler(scheduleSvc, logger),
		Admin:              admin.NewHandler(bookingSvc, st, !cfg.IsProduction(), logger),
		DB:                 st,
		Idempotency:        BuildIdempotencyStore(redisClient, cfg),
		BookingLimiter:     httpmiddleware.NewRateLimiter(cfg.BookingRateLimitRPS, cfg.BookingRateLimitBurst),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return &App{
		Handler:  handler,
		Bookings: bookingSvc,
		Sweeper:  sw,
		store:    st,
		redis:    redisClient,
		logger:   logger,
	}, nil
}

// Start launches background work.
func (a *App) Start() {
	a.Sweeper.Start()
}

// Close stops the sweeper, then releases Redis and the database pool.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Sweeper.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("bootstrap: close redis: %w", err))
		}
	}
	a.store.Close()
	return errors.Join(errs...)
}
