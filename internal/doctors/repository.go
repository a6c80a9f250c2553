package doctors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/doctor-booking/internal/store"
)

const doctorColumns = "id, name, specialization, bio, created_at"

// Repository holds the doctor SQL.
type Repository struct{}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	if err := row.Scan(&d.ID, &d.Name, &d.Specialization, &d.Bio, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (Repository) Insert(ctx context.Context, q store.Querier, in NewDoctor) (*Doctor, error) {
	d, err := scanDoctor(q.QueryRow(ctx, `
		INSERT INTO doctors (name, specialization, bio)
		VALUES ($1, $2, $3)
		RETURNING `+doctorColumns, in.Name, in.Specialization, in.Bio))
	if err != nil {
		return nil, fmt.Errorf("doctors: insert: %w", err)
	}
	return d, nil
}

func (Repository) Get(ctx context.Context, q store.Querier, id int64) (*Doctor, error) {
	d, err := scanDoctor(q.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("doctors: get %d: %w", id, err)
	}
	return d, nil
}

// Exists reports whether the doctor row is present, taking a share lock so
// the doctor cannot be deleted before the caller's transaction commits.
func (Repository) Exists(ctx context.Context, q store.Querier, id int64) (bool, error) {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM doctors WHERE id = $1 FOR SHARE`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("doctors: exists %d: %w", id, err)
	}
	return true, nil
}

func (Repository) List(ctx context.Context, q store.Querier) ([]Doctor, error) {
	rows, err := q.Query(ctx, `SELECT `+doctorColumns+` FROM doctors ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("doctors: list: %w", err)
	}
	defer rows.Close()

	out := []Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("doctors: list: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (Repository) Update(ctx context.Context, q store.Querier, id int64, u Update) (*Doctor, error) {
	b := store.NewUpdate("doctors", "name", "specialization", "bio")
	if u.Name != nil {
		b.Set("name", *u.Name)
	}
	if u.Specialization != nil {
		b.Set("specialization", *u.Specialization)
	}
	if u.Bio != nil {
		b.Set("bio", *u.Bio)
	}
	sql, args, err := b.Build("id", id, doctorColumns)
	if err != nil {
		return nil, fmt.Errorf("doctors: update %d: %w", id, err)
	}
	d, err := scanDoctor(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, fmt.Errorf("doctors: update %d: %w", id, err)
	}
	return d, nil
}

// Delete removes the doctor; slots go with it via ON DELETE CASCADE.
func (Repository) Delete(ctx context.Context, q store.Querier, id int64) (bool, error) {
	tag, err := q.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("doctors: delete %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}
