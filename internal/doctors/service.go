package doctors

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/doctor-booking/internal/apperr"
	"github.com/wolfman30/doctor-booking/internal/store"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

// Service manages doctors.
type Service struct {
	store  *store.Store
	repo   Repository
	logger *logging.Logger
}

func NewService(st *store.Store, logger *logging.Logger) *Service {
	if st == nil {
		panic("doctors: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: st, logger: logger}
}

func (s *Service) Create(ctx context.Context, in NewDoctor) (*Doctor, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	var d *Doctor
	err := s.store.Do(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		d, err = s.repo.Insert(ctx, q, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("doctor created", "doctor_id", d.ID)
	return d, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Doctor, error) {
	var d *Doctor
	err := s.store.Do(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		d, err = s.repo.Get(ctx, q, id)
		return doctorNotFound(err)
	})
	return d, err
}

func (s *Service) List(ctx context.Context) ([]Doctor, error) {
	var out []Doctor
	err := s.store.Do(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = s.repo.List(ctx, q)
		return err
	})
	return out, err
}

func (s *Service) Update(ctx context.Context, id int64, u Update) (*Doctor, error) {
	if u.empty() {
		return nil, apperr.Validation("no updatable fields provided")
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, apperr.Validation("name must not be empty")
	}
	var d *Doctor
	err := s.store.Do(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		d, err = s.repo.Update(ctx, q, id, u)
		return doctorNotFound(err)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("doctor updated", "doctor_id", id)
	return d, nil
}

// Delete removes the doctor and, by cascade, all of its slots. Bookings that
// referenced those slots stay behind with NULL slot and doctor references.
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
		return apperr.ErrDoctorNotFound
	}
	s.logger.Info("doctor deleted", "doctor_id", id)
	return nil
}

func doctorNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrDoctorNotFound
	}
	return err
}
