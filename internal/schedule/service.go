package schedule

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/doctor-booking/internal/apperr"
	"github.com/wolfman30/doctor-booking/internal/doctors"
	"github.com/wolfman30/doctor-booking/internal/observability/metrics"
	"github.com/wolfman30/doctor-booking/internal/slots"
	"github.com/wolfman30/doctor-booking/internal/store"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

var scheduleTracer = otel.Tracer("doctor-booking.internal.schedule")

// Service generates slots for a doctor's day.
type Service struct {
	store   *store.Store
	doctors doctors.Repository
	slots   slots.Repository
	metrics *metrics.BookingMetrics
	loc     *time.Location
	logger  *logging.Logger
}

// NewService wires the generator. Hours in requests are read in loc.
func NewService(st *store.Store, m *metrics.BookingMetrics, loc *time.Location, logger *logging.Logger) *Service {
	if st == nil {
		panic("schedule: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: st, metrics: m, loc: loc, logger: logger}
}

// Generate plans the day and inserts every window in one statement. Either all
// windows are created or none are.
func (s *Service) Generate(ctx context.Context, doctorID int64, req Request) (*Result, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.generate")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("doctor.id", doctorID),
		attribute.String("schedule.date", req.Date),
		attribute.Int("schedule.duration_minutes", req.DurationMinutes),
	)

	if req.StartHour == nil || req.EndHour == nil {
		return nil, apperr.Validation("startHour and endHour are required")
	}
	windows, err := Plan(req.Date, *req.StartHour, *req.EndHour, req.DurationMinutes, s.loc)
	if err != nil {
		return nil, err
	}

	var created []slots.Slot
	err = s.store.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		ok, err := s.doctors.Exists(ctx, tx, doctorID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrDoctorNotFound
		}
		created, err = s.slots.InsertWindows(ctx, tx, doctorID, windows)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.metrics.ObserveSlotsGenerated(len(created))
	span.SetAttributes(attribute.Int("schedule.created", len(created)))
	s.logger.Info("schedule generated", "doctor_id", doctorID, "date", req.Date, "created", len(created))
	return &Result{Success: true, Created: len(created), Slots: created}, nil
}
