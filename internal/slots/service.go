package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/doctor-booking/internal/apperr"
	"github.com/wolfman30/doctor-booking/internal/store"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

// Service is the slot manager used by handlers and by the schedule generator.
type Service struct {
	store  *store.Store
	repo   Repository
	logger *logging.Logger
}

// NewService constructs a slot service.
func NewService(st *store.Store, logger *logging.Logger) *Service {
	if st == nil {
		panic("slots: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: st, logger: logger}
}

// Create validates the window and inserts a free slot for doctorID.
func (s *Service) Create(ctx context.Context, doctorID int64, start, end time.Time) (*Slot, error) {
	if doctorID <= 0 {
		return nil, apperr.Validation("doctor_id is required")
	}
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	var created *Slot
	err := s.store.Do(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		created, err = s.repo.Insert(ctx, q, doctorID, start, end)
		return unknownDoctor(err, doctorID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("slot created", "slot_id", created.ID, "doctor_id", doctorID)
	return created, nil
}

// Get returns one slot or ErrSlotNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Slot, error) {
	var slot *Slot
	err := s.store.Do(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		slot, err = s.repo.Get(ctx, q, id)
		return slotNotFound(err)
	})
	return slot, err
}

// List returns slots matching f ordered by start time.
func (s *Service) List(ctx context.Context, f Filter) ([]Slot, error) {
	var out []Slot
	err := s.store.Do(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = s.repo.List(ctx, q, f)
		return err
	})
	return out, err
}

// Available returns every unbooked slot.
func (s *Service) Available(ctx context.Context) ([]Slot, error) {
	return s.List(ctx, Filter{OnlyAvailable: true})
}

// ListPage returns one page of slots.
func (s *Service) ListPage(ctx context.Context, p PageRequest) ([]Slot, error) {
	var out []Slot
	err := s.store.Do(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = s.repo.ListPage(ctx, q, p)
		return err
	})
	return out, err
}

// Update changes doctor or times. The resulting window is re-validated
// against the stored values inside the same transaction.
func (s *Service) Update(ctx context.Context, id int64, u Update) (*Slot, error) {
	if u.DoctorID == nil && u.StartTime == nil && u.EndTime == nil {
		return nil, apperr.Validation("no updatable fields provided")
	}
	var updated *Slot
	err := s.store.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return slotNotFound(err)
		}
		if u.DoctorID != nil && *u.DoctorID != current.DoctorID && current.IsBooked {
			return ErrBookedSlotMove
		}
		start, end := current.StartTime, current.EndTime
		if u.StartTime != nil {
			start = *u.StartTime
		}
		if u.EndTime != nil {
			end = *u.EndTime
		}
		if err := validateWindow(start, end); err != nil {
			return err
		}
		updated, err = s.repo.Update(ctx, tx, id, u)
		if err != nil && u.DoctorID != nil {
			return unknownDoctor(err, *u.DoctorID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("slot updated", "slot_id", id)
	return updated, nil
}

// Delete removes a slot. Bookings that referenced it are kept with a NULL slot.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var deleted bool
	err := s.store.Do(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		deleted, err = s.repo.Delete(ctx, q, id)
		return err
	})
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.ErrSlotNotFound
	}
	s.logger.Info("slot deleted", "slot_id", id)
	return nil
}

func slotNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrSlotNotFound
	}
	return err
}

func unknownDoctor(err error, doctorID int64) error {
	if store.IsForeignKeyViolation(err) {
		return apperr.Wrap(err, apperr.KindValidation, fmt.Sprintf("doctor %d does not exist", doctorID))
	}
	return err
}
