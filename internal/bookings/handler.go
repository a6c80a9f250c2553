package bookings

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/doctor-booking/internal/apperr"
	"github.com/wolfman30/doctor-booking/internal/httpx"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

// Handler exposes booking endpoints.
type Handler struct {
	svc           *Service
	expireDefault time.Duration
	logger        *logging.Logger
}

// NewHandler creates a booking handler. expireDefault is the threshold used by
// POST /bookings/expire when no minutes parameter is given.
func NewHandler(svc *Service, expireDefault time.Duration, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if expireDefault <= 0 {
		expireDefault = 2 * time.Minute
	}
	return &Handler{svc: svc, expireDefault: expireDefault, logger: logger}
}

// Routes returns the booking router. createMiddleware wraps only POST /bookings
// (rate limiting and idempotency replay).
func (h *Handler) Routes(admin func(http.Handler) http.Handler, createMiddleware ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.With(createMiddleware...).Post("/", h.Create)
	r.Get("/user/{name}", h.ListByUser)
	r.Group(func(r chi.Router) {
		r.Use(admin)
		r.Get("/", h.List)
		r.Post("/expire", h.Expire)
		r.Delete("/{id}", h.Cancel)
		r.Post("/{id}/confirm", h.Confirm)
	})
	return r
}

// Create handles POST /bookings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	booking, err := h.svc.Create(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, booking)
}

// List handles GET /bookings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.List(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// ListByUser handles GET /bookings/user/{name}.
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListByUser(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Cancel handles DELETE /bookings/{id}.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Confirm handles POST /bookings/{id}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	booking, err := h.svc.Confirm(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, booking)
}

type expireResponse struct {
	Expired  int       `json:"expired"`
	Bookings []Booking `json:"bookings"`
}

// Expire handles POST /bookings/expire?minutes=N.
func (h *Handler) Expire(w http.ResponseWriter, r *http.Request) {
	threshold := h.expireDefault
	if raw := strings.TrimSpace(r.URL.Query().Get("minutes")); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			httpx.WriteError(w, r, h.logger, apperr.Validation("minutes must be a positive integer"))
			return
		}
		threshold = time.Duration(minutes) * time.Minute
	}
	expired, err := h.svc.ExpireStale(r.Context(), threshold)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, expireResponse{Expired: len(expired), Bookings: expired})
}
