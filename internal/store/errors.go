package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/doctor-booking/internal/apperr"
)

// Postgres SQLSTATE codes the store classifies.
const (
	codeForeignKeyViolation  = "23503"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeInvalidDatetime      = "22007"
	codeDatetimeOverflow     = "22008"
	codeQueryCanceled        = "57014"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Classify maps a driver error onto the application taxonomy. Errors that are
// already classified pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(err, apperr.KindNotFound, "record not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			return apperr.Wrap(err, apperr.KindValidation, "referenced record does not exist")
		case codeUniqueViolation:
			return apperr.Wrap(err, apperr.KindConflict, "record already exists")
		case codeCheckViolation, codeInvalidDatetime, codeDatetimeOverflow:
			return apperr.Wrap(err, apperr.KindValidation, "invalid value")
		case codeQueryCanceled:
			return apperr.Wrap(err, apperr.KindStoreTimeout, "query timed out")
		case codeSerializationFailure, codeDeadlockDetected:
			return apperr.Wrap(err, apperr.KindConflict, "concurrent update conflict")
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(err, apperr.KindStoreTimeout, "query timed out")
	}
	return apperr.Wrap(err, apperr.KindInternal, "internal server error")
}

// IsForeignKeyViolation reports whether err came from a foreign key constraint.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}

func (s *Store) classify(err error) error {
	classified := Classify(err)
	if apperr.KindOf(classified) == apperr.KindStoreTimeout && s.Stats().Saturated() {
		s.logger.Error("connection pool exhausted", "error", err)
		return apperr.Wrap(err, apperr.KindPoolExhausted, "connection pool exhausted")
	}
	return classified
}
