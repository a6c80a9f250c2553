// Package slots manages doctor time slots and their atomic reservation.
package slots

import (
	"time"

	"github.com/wolfman30/doctor-booking/internal/apperr"
)

// Slot is a bookable interval belonging to one doctor.
type Slot struct {
	ID        int64     `json:"id"`
	DoctorID  int64     `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	IsBooked  bool      `json:"is_booked"`
	CreatedAt time.Time `json:"created_at"`
}

// Window is an unsaved [Start, End) interval.
type Window struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

// Filter narrows List. Zero values mean "no constraint".
type Filter struct {
	DoctorID *int64
	// Day matches slots whose start falls on that calendar day in Day's location.
	Day           *time.Time
	OnlyAvailable bool
}

// Update carries optional new values; nil fields are left unchanged.
type Update struct {
	DoctorID  *int64     `json:"doctor_id,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// PageRequest drives ListPage.
type PageRequest struct {
	Page  int
	Limit int
	Sort  string
	Order string
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	maxPage          = 1_000_000
)

var sortColumns = map[string]struct{}{
	"start_time": {},
	"end_time":   {},
	"doctor_id":  {},
}

func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > maxPage {
		p.Page = maxPage
	}
	if p.Limit < 1 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if _, ok := sortColumns[p.Sort]; !ok {
		p.Sort = "start_time"
	}
	if p.Order != "desc" {
		p.Order = "asc"
	}
	return p
}

func (p PageRequest) offset() int {
	return (p.Page - 1) * p.Limit
}

// ErrNotAvailable is returned by ReserveAtomically when no free row matched.
var ErrNotAvailable = apperr.Conflict("Slot not available")

// ErrBookedSlotMove rejects reassigning a booked slot to another doctor.
var ErrBookedSlotMove = apperr.Conflict("Booked slot cannot be moved to another doctor")

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation("start_time and end_time are required")
	}
	if !end.After(start) {
		return apperr.Validation("end_time must be after start_time")
	}
	return nil
}
