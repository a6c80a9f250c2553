package slots

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/doctor-booking/internal/store"
)

const slotColumns = "id, doctor_id, start_time, end_time, is_booked, created_at"

// Repository holds the slot SQL. It is stateless and runs against whatever
// Querier it is given, so the same statements work on the pool and inside a transaction.
type Repository struct{}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	if err := row.Scan(&s.ID, &s.DoctorID, &s.StartTime, &s.EndTime, &s.IsBooked, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()
	out := []Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Insert creates a free slot.
func (Repository) Insert(ctx context.Context, q store.Querier, doctorID int64, start, end time.Time) (*Slot, error) {
	row := q.QueryRow(ctx, `
		INSERT INTO slots (doctor_id, start_time, end_time, is_booked)
		VALUES ($1, $2, $3, FALSE)
		RETURNING `+slotColumns, doctorID, start, end)
	s, err := scanSlot(row)
	if err != nil {
		return nil, fmt.Errorf("slots: insert: %w", err)
	}
	return s, nil
}

// InsertWindows creates all windows for doctorID in one multi-row statement.
func (Repository) InsertWindows(ctx context.Context, q store.Querier, doctorID int64, windows []Window) ([]Slot, error) {
	if len(windows) == 0 {
		return []Slot{}, nil
	}
	values := make([]string, len(windows))
	args := make([]any, 0, len(windows)*2+1)
	args = append(args, doctorID)
	for i, w := range windows {
		values[i] = fmt.Sprintf("($1, $%d, $%d, FALSE)", 2*i+2, 2*i+3)
		args = append(args, w.Start, w.End)
	}
	rows, err := q.Query(ctx, `
		INSERT INTO slots (doctor_id, start_time, end_time, is_booked)
		VALUES `+strings.Join(values, ", ")+`
		RETURNING `+slotColumns, args...)
	if err != nil {
		return nil, fmt.Errorf("slots: insert batch: %w", err)
	}
	out, err := collectSlots(rows)
	if err != nil {
		return nil, fmt.Errorf("slots: insert batch: %w", err)
	}
	return out, nil
}

// Get loads one slot. A missing row surfaces as pgx.ErrNoRows.
func (Repository) Get(ctx context.Context, q store.Querier, id int64) (*Slot, error) {
	s, err := scanSlot(q.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("slots: get %d: %w", id, err)
	}
	return s, nil
}

// GetForUpdate loads one slot and locks its row until the transaction ends.
func (Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*Slot, error) {
	s, err := scanSlot(tx.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("slots: get %d for update: %w", id, err)
	}
	return s, nil
}

// List returns slots matching f ordered by start time. No rows are locked.
func (Repository) List(ctx context.Context, q store.Querier, f Filter) ([]Slot, error) {
	var (
		conditions []string
		args       []any
	)
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		conditions = append(conditions, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if f.Day != nil {
		args = append(args, *f.Day, f.Day.AddDate(0, 0, 1))
		conditions = append(conditions, fmt.Sprintf("start_time >= $%d AND start_time < $%d", len(args)-1, len(args)))
	}
	if f.OnlyAvailable {
		conditions = append(conditions, "is_booked = FALSE")
	}

	sql := `SELECT ` + slotColumns + ` FROM slots`
	if len(conditions) > 0 {
		sql += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	sql += ` ORDER BY start_time ASC, id ASC`

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("slots: list: %w", err)
	}
	out, err := collectSlots(rows)
	if err != nil {
		return nil, fmt.Errorf("slots: list: %w", err)
	}
	return out, nil
}

// ListPage returns one page of slots. Sort and order are whitelisted by PageRequest.normalize.
func (Repository) ListPage(ctx context.Context, q store.Querier, p PageRequest) ([]Slot, error) {
	p = p.normalize()
	sql := fmt.Sprintf(`SELECT %s FROM slots ORDER BY %s %s, id ASC LIMIT $1 OFFSET $2`, slotColumns, p.Sort, p.Order)
	rows, err := q.Query(ctx, sql, p.Limit, p.offset())
	if err != nil {
		return nil, fmt.Errorf("slots: list page: %w", err)
	}
	out, err := collectSlots(rows)
	if err != nil {
		return nil, fmt.Errorf("slots: list page: %w", err)
	}
	return out, nil
}

// Update applies the non-nil fields of u.
func (Repository) Update(ctx context.Context, q store.Querier, id int64, u Update) (*Slot, error) {
	b := store.NewUpdate("slots", "doctor_id", "start_time", "end_time")
	if u.DoctorID != nil {
		b.Set("doctor_id", *u.DoctorID)
	}
	if u.StartTime != nil {
		b.Set("start_time", *u.StartTime)
	}
	if u.EndTime != nil {
		b.Set("end_time", *u.EndTime)
	}
	sql, args, err := b.Build("id", id, slotColumns)
	if err != nil {
		return nil, fmt.Errorf("slots: update %d: %w", id, err)
	}
	s, err := scanSlot(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, fmt.Errorf("slots: update %d: %w", id, err)
	}
	return s, nil
}

// Delete hard-deletes a slot; bookings keep their row with a NULL slot reference.
func (Repository) Delete(ctx context.Context, q store.Querier, id int64) (bool, error) {
	tag, err := q.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("slots: delete %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReserveAtomically flips a free slot to booked in a single conditional
// statement. The row lock taken by the UPDATE serializes concurrent callers;
// only one of them sees a returned row. ErrNotAvailable covers both a slot
// that is already booked and one that does not exist.
func (Repository) ReserveAtomically(ctx context.Context, q store.Querier, id int64) (*Slot, error) {
	s, err := scanSlot(q.QueryRow(ctx, `
		UPDATE slots SET is_booked = TRUE
		WHERE id = $1 AND is_booked = FALSE
		RETURNING `+slotColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("slots: reserve %d: %w", id, err)
	}
	return s, nil
}

// Release marks a slot free again unless a live (non-FAILED) booking still references it.
func (Repository) Release(ctx context.Context, q store.Querier, id int64) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE slots SET is_booked = FALSE
		WHERE id = $1 AND is_booked = TRUE
		  AND NOT EXISTS (
		      SELECT 1 FROM bookings b WHERE b.slot_id = slots.id AND b.status <> 'FAILED'
		  )`, id)
	if err != nil {
		return false, fmt.Errorf("slots: release %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}
