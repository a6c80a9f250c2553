package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/doctor-booking/internal/admin"
	"github.com/wolfman30/doctor-booking/internal/apperr"
	"github.com/wolfman30/doctor-booking/internal/bookings"
	"github.com/wolfman30/doctor-booking/internal/doctors"
	httpmiddleware "github.com/wolfman30/doctor-booking/internal/http/middleware"
	"github.com/wolfman30/doctor-booking/internal/httpx"
	"github.com/wolfman30/doctor-booking/internal/idempotency"
	"github.com/wolfman30/doctor-booking/internal/schedule"
	"github.com/wolfman30/doctor-booking/internal/slots"
	"github.com/wolfman30/doctor-booking/internal/store"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

// HealthChecker is the database view /health needs.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Stats() store.PoolStats
}

// Config holds router configuration
type Config struct {
	Logger   *logging.Logger
	Doctors  *doctors.Handler
	Slots    *slots.Handler
	Bookings *bookings.Handler
	Schedule *schedule.Handler
	Admin    *admin.Handler
	DB       HealthChecker

	// Idempotency is optional; nil disables Idempotency-Key replay.
	Idempotency *idempotency.Store
	// BookingLimiter is optional; nil disables rate limiting of POST /bookings.
	BookingLimiter *httpmiddleware.RateLimiter

	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteJSON(w, apperr.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusMethodNotAllowed, apperr.Response{Error: "method not allowed"})
	})

	adminOnly := httpmiddleware.AdminJWT(cfg.AdminAuthSecret)

	r.Get("/health", healthHandler(cfg.DB))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Doctors != nil {
		doctorRoutes := cfg.Doctors.Routes(adminOnly)
		if cfg.Schedule != nil {
			cfg.Schedule.Register(doctorRoutes, adminOnly)
		}
		r.Mount("/doctors", doctorRoutes)
	}
	if cfg.Slots != nil {
		r.Mount("/slots", cfg.Slots.Routes(adminOnly))
	}
	if cfg.Bookings != nil {
		var create []func(http.Handler) http.Handler
		if cfg.BookingLimiter != nil {
			create = append(create, httpmiddleware.RateLimit(cfg.BookingLimiter))
		}
		create = append(create, idempotency.Middleware(cfg.Idempotency, "bookings", logger))
		r.Mount("/bookings", cfg.Bookings.Routes(adminOnly, create...))
	}
	if cfg.Admin != nil {
		r.Mount("/admin", cfg.Admin.Routes(adminOnly))
	}

	return r
}

type healthResponse struct {
	Status   string           `json:"status"`
	Database string           `json:"database"`
	Pool     *store.PoolStats `json:"pool,omitempty"`
	Time     time.Time        `json:"time"`
}

// healthHandler reports 200 while the database answers and 503 otherwise.
func healthHandler(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Database: "unconfigured", Time: time.Now().UTC()}
		if db == nil {
			httpx.WriteJSON(w, http.StatusOK, resp)
			return
		}
		stats := db.Stats()
		resp.Pool = &stats
		if err := db.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			httpx.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
