package slots

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

// Handler exposes slot endpoints.
type Handler struct {
	svc    *Service
	loc    *time.Location
	logger *logging.Logger
}

// NewHandler creates a slot handler. loc interprets the date filter of /slots/search.
func NewHandler(svc *Service, loc *time.Location, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, loc: loc, logger: logger}
}

// Routes mounts public reads directly and everything else behind admin.
func (h *Handler) Routes(admin func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/available", h.Available)
	r.Get("/search", h.Search)
	r.Group(func(r chi.Router) {
		r.Use(admin)
		r.Get("/", h.List)
		r.Get("/paginated", h.Paginated)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
	return r
}

type createRequest struct {
	DoctorID  int64     `json:"doctor_id" validate:"required,gt=0"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

// Create handles POST /slots.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	slot, err := h.svc.Create(r.Context(), req.DoctorID, req.StartTime, req.EndTime)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, slot)
}

// List handles GET /slots.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.List(r.Context(), Filter{})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Available handles GET /slots/available.
func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Available(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Search handles GET /slots/search?doctorId=&date=YYYY-MM-DD&onlyAvailable=true.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilter(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	out, err := h.svc.List(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) parseFilter(r *http.Request) (Filter, error) {
	var f Filter
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("doctorId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return f, apperr.Validation("doctorId must be a positive integer")
		}
		f.DoctorID = &id
	}
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		day, err := time.ParseInLocation(time.DateOnly, raw, h.loc)
		if err != nil {
			return f, apperr.Validation("date must be YYYY-MM-DD")
		}
		f.Day = &day
	}
	f.OnlyAvailable = q.Get("onlyAvailable") == "true"
	return f, nil
}

// Paginated handles GET /slots/paginated?page=&limit=&sort=&order=.
func (h *Handler) Paginated(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.QueryInt(r, "page", 1)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	limit, err := httpx.QueryInt(r, "limit", defaultPageLimit)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	out, err := h.svc.ListPage(r.Context(), PageRequest{
		Page:  page,
		Limit: limit,
		Sort:  r.URL.Query().Get("sort"),
		Order: r.URL.Query().Get("order"),
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Get handles GET /slots/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	slot, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slot)
}

// Update handles PUT /slots/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var req Update
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	slot, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slot)
}

// Delete handles DELETE /slots/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
