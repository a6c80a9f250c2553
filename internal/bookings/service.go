package bookings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/doctor-booking/internal/apperr"
	"github.com/wolfman30/doctor-booking/internal/observability/metrics"
	"github.com/wolfman30/doctor-booking/internal/slots"
	"github.com/wolfman30/doctor-booking/internal/store"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

var bookingsTracer = otel.Tracer("doctor-booking.internal.bookings")

// Options tunes the booking lifecycle.
type Options struct {
	// InitialStatus is CONFIRMED for synchronous booking or PENDING when a
	// later Confirm call (or the expiry sweep) settles the booking.
	InitialStatus Status
	CancelPolicy  CancelPolicy
	// Location defines "today" for Stats.
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if !o.InitialStatus.Live() {
		o.InitialStatus = StatusConfirmed
	}
	if o.CancelPolicy != CancelRelease {
		o.CancelPolicy = CancelRetire
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Service is the booking manager.
type Service struct {
	store   *store.Store
	repo    Repository
	slots   slots.Repository
	metrics *metrics.BookingMetrics
	opts    Options
	logger  *logging.Logger
	now     func() time.Time
}

// NewService constructs a booking service. m may be nil.
func NewService(st *store.Store, m *metrics.BookingMetrics, opts Options, logger *logging.Logger) *Service {
	if st == nil {
		panic("bookings: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:   st,
		metrics: m,
		opts:    opts.withDefaults(),
		logger:  logger,
		now:     time.Now,
	}
}

// Create books a slot. The slot row is locked, checked and reserved in the
// same transaction as the booking insert; any failure rolls everything back.
// Among concurrent callers for one slot exactly one succeeds and the rest
// get ErrSlotAlreadyBooked. A missing slot is always ErrSlotNotFound.
func (s *Service) Create(ctx context.Context, req Request) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking.slot_id", req.SlotID))

	if err := req.normalize(); err != nil {
		s.metrics.ObserveAttempt(metrics.OutcomeInvalid)
		return nil, err
	}

	started := s.now()
	var booking *Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		slot, err := s.repo.LockSlot(ctx, tx, req.SlotID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.ErrSlotNotFound
		}
		if err != nil {
			return err
		}
		if slot.IsBooked {
			return apperr.ErrSlotAlreadyBooked
		}

		booking, err = s.repo.Insert(ctx, tx, slot, req, s.opts.InitialStatus)
		if err != nil {
			return err
		}
		if _, err := s.slots.ReserveAtomically(ctx, tx, slot.ID); err != nil {
			if errors.Is(err, slots.ErrNotAvailable) {
				return apperr.ErrSlotAlreadyBooked
			}
			return err
		}
		return nil
	})
	s.metrics.ObserveTx("create", s.now().Sub(started).Seconds())
	s.metrics.ObserveAttempt(outcome(err))
	if err != nil {
		recordError(span, err)
		if apperr.Is(err, apperr.KindConflict) {
			s.logger.Info("slot already booked", "slot_id", req.SlotID)
		} else if !apperr.Is(err, apperr.KindNotFound) {
			s.logger.Error("booking failed", "slot_id", req.SlotID, "error", err)
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int64("booking.id", booking.ID))
	s.logger.Info("booking created", "booking_id", booking.ID, "slot_id", req.SlotID, "status", booking.Status)
	return booking, nil
}

// List returns all bookings with slot and doctor details.
func (s *Service) List(ctx context.Context) ([]View, error) {
	var out []View
	err := s.store.Do(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = s.repo.List(ctx, q)
		return err
	})
	return out, err
}

// ListByUser returns one requester's bookings, matching the name case-insensitively.
func (s *Service) ListByUser(ctx context.Context, name string) ([]View, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("user name is required")
	}
	var out []View
	err := s.store.Do(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = s.repo.ListByUser(ctx, q, name)
		return err
	})
	return out, err
}

// Cancel deletes a booking. Under CancelRelease the slot is freed in the
// same transaction; under CancelRetire it stays booked.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.cancel")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("booking.id", id),
		attribute.String("booking.cancel_policy", string(s.opts.CancelPolicy)),
	)

	var (
		removed  *Booking
		released bool
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		removed, err = s.repo.Delete(ctx, tx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.ErrBookingNotFound
		}
		if err != nil {
			return err
		}
		if s.opts.CancelPolicy != CancelRelease || removed.SlotID == nil {
			return nil
		}
		released, err = s.slots.Release(ctx, tx, *removed.SlotID)
		return err
	})
	if err != nil {
		recordError(span, err)
		return err
	}
	if released {
		s.metrics.ObserveReleased("cancel", 1)
	}
	s.logger.Info("booking cancelled", "booking_id", id, "slot_id", removed.SlotID,
		"policy", s.opts.CancelPolicy, "slot_released", released)
	return nil
}

// Confirm settles a PENDING booking.
func (s *Service) Confirm(ctx context.Context, id int64) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.confirm")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking.id", id))

	var confirmed *Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		confirmed, err = s.repo.Confirm(ctx, tx, id)
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if _, getErr := s.repo.Get(ctx, tx, id); getErr != nil {
			if errors.Is(getErr, pgx.ErrNoRows) {
				return apperr.ErrBookingNotFound
			}
			return getErr
		}
		return apperr.ErrBookingNotPending
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	s.logger.Info("booking confirmed", "booking_id", id, "slot_id", confirmed.SlotID)
	return confirmed, nil
}

// ExpireStale fails PENDING bookings older than threshold and frees their
// slots, all in one transaction. Running it again only touches rows that
// became stale since.
func (s *Service) ExpireStale(ctx context.Context, threshold time.Duration) ([]Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.expire_stale")
	defer span.End()
	span.SetAttributes(attribute.Float64("booking.threshold_seconds", threshold.Seconds()))

	if threshold <= 0 {
		return nil, apperr.Validation("threshold must be positive")
	}

	started := s.now()
	var (
		expired  []Booking
		released int
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		expired, err = s.repo.ExpireStale(ctx, tx, threshold)
		if err != nil {
			return err
		}
		seen := make(map[int64]struct{}, len(expired))
		for _, b := range expired {
			if b.SlotID == nil {
				continue
			}
			if _, dup := seen[*b.SlotID]; dup {
				continue
			}
			seen[*b.SlotID] = struct{}{}
			ok, err := s.slots.Release(ctx, tx, *b.SlotID)
			if err != nil {
				return err
			}
			if ok {
				released++
			}
		}
		return nil
	})
	s.metrics.ObserveTx("expire", s.now().Sub(started).Seconds())
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.metrics.ObserveExpired(len(expired))
	s.metrics.ObserveReleased("expired", released)
	span.SetAttributes(attribute.Int("booking.expired", len(expired)))
	if len(expired) > 0 {
		s.logger.Info("stale bookings expired", "count", len(expired), "slots_released", released)
	}
	return expired, nil
}

// Stats returns row counts; "today" starts at midnight in the configured location.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now().In(s.opts.Location)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.opts.Location)
	var out *Stats
	err := s.store.Do(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = s.repo.Stats(ctx, q, midnight)
		return err
	})
	return out, err
}

// Reset clears all bookings and frees every slot.
func (s *Service) Reset(ctx context.Context) (*ResetResult, error) {
	var out *ResetResult
	err := s.store.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		out, err = s.repo.Reset(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("bookings reset", "bookings_deleted", out.BookingsDeleted, "slots_released", out.SlotsReleased)
	return out, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeBooked
	case errors.Is(err, apperr.ErrSlotAlreadyBooked):
		return metrics.OutcomeAlreadyBooked
	case errors.Is(err, apperr.ErrSlotNotFound):
		return metrics.OutcomeNotFound
	case apperr.Is(err, apperr.KindValidation):
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(apperr.KindOf(err)))
}
