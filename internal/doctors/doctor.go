// Package doctors manages the doctor directory. Deleting a doctor removes
// its slots through the slots.doctor_id foreign key.
package doctors

import "time"

// Doctor is a bookable practitioner.
type Doctor struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	Bio            string    `json:"bio"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewDoctor is the create payload.
type NewDoctor struct {
	Name           string `json:"name" validate:"required,max=200"`
	Specialization string `json:"specialization" validate:"max=200"`
	Bio            string `json:"bio" validate:"max=4000"`
}

// Update carries optional new values.
type Update struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Specialization *string `json:"specialization,omitempty" validate:"omitempty,max=200"`
	Bio            *string `json:"bio,omitempty" validate:"omitempty,max=4000"`
}

func (u Update) empty() bool {
	return u.Name == nil && u.Specialization == nil && u.Bio == nil
}
