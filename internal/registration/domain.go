// internal/registration/domain.go
package registration

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a registration. Registrations are never
// physically deleted; cancelling flips the state and preserves the record.
type State string

const (
	StateActive    State = "active"
	StateCancelled State = "cancelled"
)

// Registration represents a member's admission to an event.
type Registration struct {
	ID        uuid.UUID `json:"id" db:"id"`
	MemberID  uuid.UUID `json:"member_id" db:"member_id"`
	EventID   uuid.UUID `json:"event_id" db:"event_id"`
	State     State     `json:"state" db:"state"`
	Attended  bool      `json:"attended" db:"attended"`
	Rating    *int      `json:"rating,omitempty" db:"rating"`
	Feedback  string    `json:"feedback,omitempty" db:"feedback"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	Version   int       `json:"version" db:"version"`
}

// EventSnapshot is the slice of catalog state the admission decision needs.
// The postgres ledger reads it under a row lock so that capacity and schedule
// cannot change underneath an in-flight admission.
type EventSnapshot struct {
	ID          uuid.UUID `db:"id"`
	Active      bool      `db:"active"`
	ScheduledAt time.Time `db:"scheduled_at"`
	Capacity    int       `db:"capacity"`
}

// RegistrationCreatedEvent is appended to the audit log on admission.
type RegistrationCreatedEvent struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	MemberID       uuid.UUID `json:"member_id"`
	EventID        uuid.UUID `json:"event_id"`
}

// RegistrationCancelledEvent is appended to the audit log on cancellation.
type RegistrationCancelledEvent struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	MemberID       uuid.UUID `json:"member_id"`
	EventID        uuid.UUID `json:"event_id"`
	CancelledAt    time.Time `json:"cancelled_at"`
}

// RegistrationRatedEvent is appended to the audit log when a member rates an
// attended event.
type RegistrationRatedEvent struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	MemberID       uuid.UUID `json:"member_id"`
	EventID        uuid.UUID `json:"event_id"`
	Rating         int       `json:"rating"`
}
