package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/doctor-booking/internal/apperr"
	"github.com/wolfman30/doctor-booking/internal/observability/metrics"
	"github.com/wolfman30/doctor-booking/internal/store"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

var (
	createdAt = time.Date(2025, 1, 1, 8, 30, 0, 0, time.UTC)
	slotStart = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	slotEnd   = slotStart.Add(30 * time.Minute)
	noEmail   = (*string)(nil)
)

func ptr[T any](v T) *T { return &v }

func newTestService(t *testing.T, opts Options) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	st := store.New(mock, store.Config{QueryTimeout: time.Second}, logging.New("error"))
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	return NewService(st, m, opts, logging.New("error")), mock
}

func bookingRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "slot_id", "doctor_id", "user_name", "user_email", "status", "created_at", "updated_at"})
}

func lockRows(id, doctorID int64, booked bool) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "doctor_id", "is_booked"}).AddRow(id, doctorID, booked)
}

func slotRow(id, doctorID int64) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "doctor_id", "start_time", "end_time", "is_booked", "created_at"}).
		AddRow(id, doctorID, slotStart, slotEnd, true, createdAt)
}

const lockSQL = `SELECT id, doctor_id, is_booked FROM slots WHERE id = \$1 FOR UPDATE`

func TestCreateBooksFreeSlot(t *testing.T) {
	svc, mock := newTestService(t, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs(int64(5)).WillReturnRows(lockRows(5, 2, false))
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(int64(5), int64(2), "Asha Rao", noEmail, "CONFIRMED").
		WillReturnRows(bookingRows().AddRow(int64(1), ptr(int64(5)), ptr(int64(2)), "Asha Rao", nil, "CONFIRMED", createdAt, createdAt))
	mock.ExpectQuery(`UPDATE slots SET is_booked = TRUE WHERE id = \$1 AND is_booked = FALSE`).
		WithArgs(int64(5)).
		WillReturnRows(slotRow(5, 2))
	mock.ExpectCommit()

	b, err := svc.Create(context.Background(), Request{SlotID: 5, UserName: "  Asha Rao "})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, b.Status)
	require.NotNil(t, b.SlotID)
	assert.Equal(t, int64(5), *b.SlotID)
	assert.Nil(t, b.UserEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMissingSlotIsNotFound(t *testing.T) {
	svc, mock := newTestService(t, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs(int64(404)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), Request{SlotID: 404, UserName: "Asha"})
	assert.ErrorIs(t, err, apperr.ErrSlotNotFound)
	assert.NotErrorIs(t, err, apperr.ErrSlotAlreadyBooked)
	assert.Equal(t, 404, apperr.KindOf(err).HTTPStatus())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookedSlotIsConflict(t *testing.T) {
	svc, mock := newTestService(t, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs(int64(5)).WillReturnRows(lockRows(5, 2, true))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), Request{SlotID: 5, UserName: "Ben"})
	assert.ErrorIs(t, err, apperr.ErrSlotAlreadyBooked)
	assert.Equal(t, 409, apperr.KindOf(err).HTTPStatus())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRollsBackWhenReservationLoses(t *testing.T) {
	svc, mock := newTestService(t, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs(int64(5)).WillReturnRows(lockRows(5, 2, false))
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(int64(5), int64(2), "Ben", noEmail, "CONFIRMED").
		WillReturnRows(bookingRows().AddRow(int64(1), ptr(int64(5)), ptr(int64(2)), "Ben", nil, "CONFIRMED", createdAt, createdAt))
	mock.ExpectQuery(`UPDATE slots SET is_booked = TRUE`).WithArgs(int64(5)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), Request{SlotID: 5, UserName: "Ben"})
	assert.ErrorIs(t, err, apperr.ErrSlotAlreadyBooked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRollsBackOnInsertFailure(t *testing.T) {
	svc, mock := newTestService(t, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs(int64(5)).WillReturnRows(lockRows(5, 2, false))
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(int64(5), int64(2), "Ben", noEmail, "CONFIRMED").
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), Request{SlotID: 5, UserName: "Ben"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "internal server error", apperr.PublicMessage(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingWhenConfigured(t *testing.T) {
	svc, mock := newTestService(t, Options{InitialStatus: StatusPending})
	email := "ben@example.com"

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs(int64(6)).WillReturnRows(lockRows(6, 2, false))
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(int64(6), int64(2), "Ben", &email, "PENDING").
		WillReturnRows(bookingRows().AddRow(int64(2), ptr(int64(6)), ptr(int64(2)), "Ben", &email, "PENDING", createdAt, createdAt))
	mock.ExpectQuery(`UPDATE slots SET is_booked = TRUE`).WithArgs(int64(6)).WillReturnRows(slotRow(6, 2))
	mock.ExpectCommit()

	b, err := svc.Create(context.Background(), Request{SlotID: 6, UserName: "Ben", UserEmail: email})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, b.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateValidatesBeforeTouchingStore(t *testing.T) {
	svc, mock := newTestService(t, Options{})

	_, err := svc.Create(context.Background(), Request{SlotID: 0, UserName: "Ben"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.Create(context.Background(), Request{SlotID: 3, UserName: "  "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRetireKeepsSlotBooked(t *testing.T) {
	svc, mock := newTestService(t, Options{CancelPolicy: CancelRetire})

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM bookings WHERE id = \$1 RETURNING`).WithArgs(int64(1)).
		WillReturnRows(bookingRows().AddRow(int64(1), ptr(int64(5)), ptr(int64(2)), "Asha", nil, "CONFIRMED", createdAt, createdAt))
	mock.ExpectCommit()

	require.NoError(t, svc.Cancel(context.Background(), 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelReleaseFreesSlot(t *testing.T) {
	svc, mock := newTestService(t, Options{CancelPolicy: CancelRelease})

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM bookings`).WithArgs(int64(1)).
		WillReturnRows(bookingRows().AddRow(int64(1), ptr(int64(5)), ptr(int64(2)), "Asha", nil, "CONFIRMED", createdAt, createdAt))
	mock.ExpectExec(`UPDATE slots SET is_booked = FALSE WHERE id = \$1`).WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Cancel(context.Background(), 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelReleaseSkipsOrphanedBooking(t *testing.T) {
	svc, mock := newTestService(t, Options{CancelPolicy: CancelRelease})

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM bookings`).WithArgs(int64(3)).
		WillReturnRows(bookingRows().AddRow(int64(3), nil, nil, "Asha", nil, "CONFIRMED", createdAt, createdAt))
	mock.ExpectCommit()

	require.NoError(t, svc.Cancel(context.Background(), 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelMissingBooking(t *testing.T) {
	svc, mock := newTestService(t, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM bookings`).WithArgs(int64(9)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	assert.ErrorIs(t, svc.Cancel(context.Background(), 9), apperr.ErrBookingNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirm(t *testing.T) {
	svc, mock := newTestService(t, Options{InitialStatus: StatusPending})

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE bookings SET status = 'CONFIRMED'`).WithArgs(int64(2)).
		WillReturnRows(bookingRows().AddRow(int64(2), ptr(int64(6)), ptr(int64(2)), "Ben", nil, "CONFIRMED", createdAt, createdAt))
	mock.ExpectCommit()
	b, err := svc.Confirm(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, b.Status)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE bookings SET status = 'CONFIRMED'`).WithArgs(int64(3)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM bookings WHERE id = \$1`).WithArgs(int64(3)).
		WillReturnRows(bookingRows().AddRow(int64(3), ptr(int64(7)), ptr(int64(2)), "Ben", nil, "FAILED", createdAt, createdAt))
	mock.ExpectRollback()
	_, err = svc.Confirm(context.Background(), 3)
	assert.ErrorIs(t, err, apperr.ErrBookingNotPending)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE bookings SET status = 'CONFIRMED'`).WithArgs(int64(4)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM bookings WHERE id = \$1`).WithArgs(int64(4)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()
	_, err = svc.Confirm(context.Background(), 4)
	assert.ErrorIs(t, err, apperr.ErrBookingNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireStaleFailsPendingAndReleasesSlots(t *testing.T) {
	svc, mock := newTestService(t, Options{InitialStatus: StatusPending})

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE bookings SET status = 'FAILED'.+WHERE status = 'PENDING'`).
		WithArgs(120.0).
		WillReturnRows(bookingRows().
			AddRow(int64(1), ptr(int64(5)), ptr(int64(2)), "A", nil, "FAILED", createdAt, createdAt).
			AddRow(int64(2), nil, nil, "B", nil, "FAILED", createdAt, createdAt))
	mock.ExpectExec(`UPDATE slots SET is_booked = FALSE WHERE id = \$1`).WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	expired, err := svc.ExpireStale(context.Background(), 2*time.Minute)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	for _, b := range expired {
		assert.Equal(t, StatusFailed, b.Status)
	}

	// The first run already failed those rows, so the predicate no longer matches them.
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE bookings SET status = 'FAILED'`).WithArgs(120.0).WillReturnRows(bookingRows())
	mock.ExpectCommit()

	expired, err = svc.ExpireStale(context.Background(), 2*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, expired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireStaleRejectsNonPositiveThreshold(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	_, err := svc.ExpireStale(context.Background(), 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestListShowsOrphanedBookings(t *testing.T) {
	svc, mock := newTestService(t, Options{})
	cols := []string{"id", "slot_id", "doctor_id", "user_name", "user_email", "status", "created_at", "updated_at", "start_time", "end_time", "name"}

	mock.ExpectQuery(`LEFT JOIN slots s ON s.id = b.slot_id`).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(2), ptr(int64(5)), ptr(int64(1)), "A", nil, "CONFIRMED", createdAt, createdAt, &slotStart, &slotEnd, ptr("Dr. Rao")).
			AddRow(int64(1), nil, nil, "B", nil, "CONFIRMED", createdAt, createdAt, nil, nil, nil))

	out, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Dr. Rao", *out[0].DoctorName)
	assert.Nil(t, out[1].SlotID)
	assert.Nil(t, out[1].StartTime)
}

func TestListByUserIsCaseInsensitive(t *testing.T) {
	svc, mock := newTestService(t, Options{})
	mock.ExpectQuery(`WHERE LOWER\(b.user_name\) = LOWER\(\$1\)`).WithArgs("asha RAO").
		WillReturnRows(pgxmock.NewRows([]string{"id", "slot_id", "doctor_id", "user_name", "user_email", "status", "created_at", "updated_at", "start_time", "end_time", "name"}))

	out, err := svc.ListByUser(context.Background(), " asha RAO ")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = svc.ListByUser(context.Background(), "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestStatsCountsFromLocalMidnight(t *testing.T) {
	loc := time.FixedZone("IST", 5*60*60+30*60)
	svc, mock := newTestService(t, Options{Location: loc})
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC) }
	midnight := time.Date(2025, 3, 11, 0, 0, 0, 0, loc)

	mock.ExpectQuery(`SELECT COUNT`).WithArgs(midnight).
		WillReturnRows(pgxmock.NewRows([]string{"a", "b", "c", "d", "e", "f", "g", "h"}).
			AddRow(int64(2), int64(10), int64(7), int64(3), int64(1), int64(0), int64(3), int64(0)))

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.AvailableSlots)
	assert.Equal(t, int64(1), stats.BookingsToday)
}

func TestReset(t *testing.T) {
	svc, mock := newTestService(t, Options{})

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM bookings`).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`UPDATE slots SET is_booked = FALSE WHERE is_booked = TRUE`).WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	res, err := svc.Reset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.BookingsDeleted)
	assert.Equal(t, int64(2), res.SlotsReleased)
	require.NoError(t, mock.ExpectationsWereMet())
}
