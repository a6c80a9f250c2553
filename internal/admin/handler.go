// Package admin serves operator endpoints: counts, database reachability and
// a non-production reset of booking state.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/doctor-booking/internal/apperr"
	"github.com/wolfman30/doctor-booking/internal/bookings"
	"github.com/wolfman30/doctor-booking/internal/httpx"
	"github.com/wolfman30/doctor-booking/internal/store"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

type bookingAdmin interface {
	Stats(ctx context.Context) (*bookings.Stats, error)
	Reset(ctx context.Context) (*bookings.ResetResult, error)
}

type database interface {
	Ping(ctx context.Context) error
	Stats() store.PoolStats
}

// Handler serves /admin.
type Handler struct {
	bookings   bookingAdmin
	db         database
	allowReset bool
	logger     *logging.Logger
}

// NewHandler creates the admin handler. allowReset should be false in production.
func NewHandler(b bookingAdmin, db database, allowReset bool, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{bookings: b, db: db, allowReset: allowReset, logger: logger.With("component", "admin")}
}

// Routes returns the admin router; every route goes through admin.
func (h *Handler) Routes(admin func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(admin)
	r.Get("/stats", h.Stats)
	r.Get("/ping-db", h.PingDB)
	r.Post("/reset", h.Reset)
	return r
}

// Stats handles GET /admin/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.bookings.Stats(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

type pingResponse struct {
	OK        bool            `json:"ok"`
	LatencyMS int64           `json:"latency_ms"`
	Pool      store.PoolStats `json:"pool"`
	Error     string          `json:"error,omitempty"`
}

// PingDB handles GET /admin/ping-db.
func (h *Handler) PingDB(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := h.db.Ping(r.Context())
	resp := pingResponse{OK: err == nil, LatencyMS: time.Since(start).Milliseconds(), Pool: h.db.Stats()}
	if err != nil {
		h.logger.Warn("database ping failed", "error", err)
		resp.Error = apperr.PublicMessage(err)
		httpx.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Reset handles POST /admin/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if !h.allowReset {
		httpx.WriteJSON(w, http.StatusForbidden, apperr.Response{Error: "reset is disabled in this environment"})
		return
	}
	res, err := h.bookings.Reset(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.logger.Warn("booking state reset", "bookings_deleted", res.BookingsDeleted, "slots_released", res.SlotsReleased)
	httpx.WriteJSON(w, http.StatusOK, res)
}
