package schedule

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/doctor-booking/internal/httpx"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

// Handler exposes schedule generation.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register adds POST /{id}/schedule to a doctors router.
func (h *Handler) Register(r chi.Router, admin func(http.Handler) http.Handler) {
	r.With(admin).Post("/{id}/schedule", h.Generate)
}

// Generate handles POST /doctors/{id}/schedule.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var req Request
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Generate(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
