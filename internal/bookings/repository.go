package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/doctor-booking/internal/store"
)

const bookingColumns = "id, slot_id, doctor_id, user_name, user_email, status, created_at, updated_at"

const viewSelect = `
	SELECT b.id, b.slot_id, b.doctor_id, b.user_name, b.user_email, b.status, b.created_at, b.updated_at,
	       s.start_time, s.end_time, d.name
	FROM bookings b
	LEFT JOIN slots s ON s.id = b.slot_id
	LEFT JOIN doctors d ON d.id = COALESCE(s.doctor_id, b.doctor_id)`

// Repository holds the booking SQL.
type Repository struct{}

type lockedSlot struct {
	ID       int64
	DoctorID int64
	IsBooked bool
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	if err := row.Scan(&b.ID, &b.SlotID, &b.DoctorID, &b.UserName, &b.UserEmail, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()
	out := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func collectViews(rows pgx.Rows) ([]View, error) {
	defer rows.Close()
	out := []View{}
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.ID, &v.SlotID, &v.DoctorID, &v.UserName, &v.UserEmail, &v.Status,
			&v.CreatedAt, &v.UpdatedAt, &v.StartTime, &v.EndTime, &v.DoctorName); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LockSlot reads the slot under an exclusive row lock held until the
// transaction ends. Concurrent bookers of the same slot queue here.
func (Repository) LockSlot(ctx context.Context, tx pgx.Tx, slotID int64) (*lockedSlot, error) {
	var s lockedSlot
	err := tx.QueryRow(ctx, `SELECT id, doctor_id, is_booked FROM slots WHERE id = $1 FOR UPDATE`, slotID).
		Scan(&s.ID, &s.DoctorID, &s.IsBooked)
	if err != nil {
		return nil, fmt.Errorf("bookings: lock slot %d: %w", slotID, err)
	}
	return &s, nil
}

func (Repository) Insert(ctx context.Context, q store.Querier, slot *lockedSlot, req Request, status Status) (*Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, `
		INSERT INTO bookings (slot_id, doctor_id, user_name, user_email, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+bookingColumns, slot.ID, slot.DoctorID, req.UserName, req.email(), string(status)))
	if err != nil {
		return nil, fmt.Errorf("bookings: insert: %w", err)
	}
	return b, nil
}

func (Repository) Get(ctx context.Context, q store.Querier, id int64) (*Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("bookings: get %d: %w", id, err)
	}
	return b, nil
}

// List returns every booking, newest first, joined with slot and doctor.
func (Repository) List(ctx context.Context, q store.Querier) ([]View, error) {
	rows, err := q.Query(ctx, viewSelect+` ORDER BY b.created_at DESC, b.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("bookings: list: %w", err)
	}
	out, err := collectViews(rows)
	if err != nil {
		return nil, fmt.Errorf("bookings: list: %w", err)
	}
	return out, nil
}

// ListByUser matches user_name case-insensitively.
func (Repository) ListByUser(ctx context.Context, q store.Querier, name string) ([]View, error) {
	rows, err := q.Query(ctx, viewSelect+` WHERE LOWER(b.user_name) = LOWER($1) ORDER BY b.created_at DESC, b.id DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("bookings: list by user: %w", err)
	}
	out, err := collectViews(rows)
	if err != nil {
		return nil, fmt.Errorf("bookings: list by user: %w", err)
	}
	return out, nil
}

// Delete removes the booking and returns the removed row.
func (Repository) Delete(ctx context.Context, q store.Querier, id int64) (*Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, `DELETE FROM bookings WHERE id = $1 RETURNING `+bookingColumns, id))
	if err != nil {
		return nil, fmt.Errorf("bookings: delete %d: %w", id, err)
	}
	return b, nil
}

// Confirm moves a PENDING booking to CONFIRMED. pgx.ErrNoRows means the row
// is missing or no longer pending.
func (Repository) Confirm(ctx context.Context, q store.Querier, id int64) (*Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, `
		UPDATE bookings SET status = 'CONFIRMED', updated_at = now()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+bookingColumns, id))
	if err != nil {
		return nil, fmt.Errorf("bookings: confirm %d: %w", id, err)
	}
	return b, nil
}

// ExpireStale fails every PENDING booking older than threshold, measured on
// the database clock. Rows already FAILED never match, so reruns are no-ops.
func (Repository) ExpireStale(ctx context.Context, q store.Querier, threshold time.Duration) ([]Booking, error) {
	rows, err := q.Query(ctx, `
		UPDATE bookings SET status = 'FAILED', updated_at = now()
		WHERE status = 'PENDING'
		  AND created_at < now() - make_interval(secs => $1)
		RETURNING `+bookingColumns, threshold.Seconds())
	if err != nil {
		return nil, fmt.Errorf("bookings: expire: %w", err)
	}
	out, err := collectBookings(rows)
	if err != nil {
		return nil, fmt.Errorf("bookings: expire: %w", err)
	}
	return out, nil
}

// Stats counts rows; bookings_today counts bookings created at or after since.
func (Repository) Stats(ctx context.Context, q store.Querier, since time.Time) (*Stats, error) {
	var s Stats
	err := q.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM doctors),
			(SELECT COUNT(*) FROM slots),
			(SELECT COUNT(*) FROM slots WHERE is_booked = FALSE),
			(SELECT COUNT(*) FROM bookings),
			(SELECT COUNT(*) FROM bookings WHERE created_at >= $1),
			(SELECT COUNT(*) FROM bookings WHERE status = 'PENDING'),
			(SELECT COUNT(*) FROM bookings WHERE status = 'CONFIRMED'),
			(SELECT COUNT(*) FROM bookings WHERE status = 'FAILED')`, since).
		Scan(&s.Doctors, &s.Slots, &s.AvailableSlots, &s.Bookings, &s.BookingsToday, &s.Pending, &s.Confirmed, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("bookings: stats: %w", err)
	}
	return &s, nil
}

// Reset deletes every booking and frees every slot.
func (Repository) Reset(ctx context.Context, tx pgx.Tx) (*ResetResult, error) {
	deleted, err := tx.Exec(ctx, `DELETE FROM bookings`)
	if err != nil {
		return nil, fmt.Errorf("bookings: reset bookings: %w", err)
	}
	released, err := tx.Exec(ctx, `UPDATE slots SET is_booked = FALSE WHERE is_booked = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("bookings: reset slots: %w", err)
	}
	return &ResetResult{BookingsDeleted: deleted.RowsAffected(), SlotsReleased: released.RowsAffected()}, nil
}
