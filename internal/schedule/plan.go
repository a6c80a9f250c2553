// Package schedule turns a working day into bookable slots for one doctor.
package schedule

import (
	"strings"
	"time"

	"github.com/wolfman30/doctor-booking/internal/apperr"
	"github.com/wolfman30/doctor-booking/internal/slots"
)

// Request is the body of POST /doctors/{id}/schedule.
type Request struct {
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	StartHour       *int   `json:"startHour" validate:"required"`
	EndHour         *int   `json:"endHour" validate:"required"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,min=1"`
}

// Result is what one generation produced.
type Result struct {
	Success bool         `json:"success"`
	Created int          `json:"created"`
	Slots   []slots.Slot `json:"slots"`
}

// Plan walks [startHour, endHour) on date in fixed steps of durationMinutes.
// A window is emitted only when it ends at or before endHour; a trailing
// remainder shorter than the duration is dropped.
func Plan(date string, startHour, endHour, durationMinutes int, loc *time.Location) ([]slots.Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(date), loc)
	if err != nil {
		return nil, apperr.Validation("date must be YYYY-MM-DD")
	}
	if startHour < 0 || startHour > 23 {
		return nil, apperr.Validation("startHour must be between 0 and 23")
	}
	if endHour <= startHour || endHour > 24 {
		return nil, apperr.Validation("endHour must be after startHour and at most 24")
	}
	if durationMinutes < 1 {
		return nil, apperr.Validation("durationMinutes must be at least 1")
	}

	y, m, d := day.Date()
	cursor := time.Date(y, m, d, startHour, 0, 0, 0, loc)
	end := time.Date(y, m, d, endHour, 0, 0, 0, loc)
	step := time.Duration(durationMinutes) * time.Minute

	windows := []slots.Window{}
	for next := cursor.Add(step); !next.After(end); next = cursor.Add(step) {
		windows = append(windows, slots.Window{Start: cursor, End: next})
		cursor = next
	}
	if len(windows) == 0 {
		return nil, apperr.Validation("durationMinutes %d does not fit between %02d:00 and %02d:00", durationMinutes, startHour, endHour)
	}
	return windows, nil
}
