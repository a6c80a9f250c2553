// Package bookings records claims on slots. A booking is created inside the
// same transaction that reserves its slot, so each slot has at most one live booking.
package bookings

import (
	"strings"
	"time"

	"github.com/wolfman30/doctor-booking/internal/apperr"
)

// Status is the booking lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
)

// Valid reports whether s is a known state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

// Live reports whether a booking in this state holds its slot.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CancelPolicy decides what cancellation does to the slot.
type CancelPolicy string

const (
	// CancelRetire deletes the booking and leaves the slot booked.
	CancelRetire CancelPolicy = "retire"
	// CancelRelease deletes the booking and frees the slot.
	CancelRelease CancelPolicy = "release"
)

// Booking is a stored booking row. SlotID and DoctorID become nil when the
// referenced slot or doctor is deleted.
type Booking struct {
	ID        int64     `json:"id"`
	SlotID    *int64    `json:"slot_id"`
	DoctorID  *int64    `json:"doctor_id"`
	UserName  string    `json:"user_name"`
	UserEmail *string   `json:"user_email,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View is a booking joined with its slot and doctor for listings.
type View struct {
	Booking
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	DoctorName *string    `json:"doctor_name"`
}

// Request is the POST /bookings body.
type Request struct {
	SlotID    int64  `json:"slot_id" validate:"required,gt=0"`
	UserName  string `json:"user_name" validate:"required,max=200"`
	UserEmail string `json:"user_email,omitempty" validate:"omitempty,email,max=320"`
}

func (r *Request) normalize() error {
	r.UserName = strings.TrimSpace(r.UserName)
	r.UserEmail = strings.TrimSpace(r.UserEmail)
	if r.SlotID <= 0 {
		return apperr.Validation("slot_id is required")
	}
	if r.UserName == "" {
		return apperr.Validation("user_name is required")
	}
	return nil
}

func (r Request) email() *string {
	if r.UserEmail == "" {
		return nil
	}
	e := r.UserEmail
	return &e
}

// Stats summarizes table sizes for the admin dashboard.
type Stats struct {
	Doctors        int64 `json:"doctors"`
	Slots          int64 `json:"slots"`
	AvailableSlots int64 `json:"available_slots"`
	Bookings       int64 `json:"bookings"`
	BookingsToday  int64 `json:"bookings_today"`
	Pending        int64 `json:"pending"`
	Confirmed      int64 `json:"confirmed"`
	Failed         int64 `json:"failed"`
}

// ResetResult reports what Reset cleared.
type ResetResult struct {
	BookingsDeleted int64 `json:"bookings_deleted"`
	SlotsReleased   int64 `json:"slots_released"`
}
