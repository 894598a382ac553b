// internal/registration/ledger.go
package registration

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Sentinel errors reported by ledger implementations. The service layer maps
// them to coded domain errors.
var (
	ErrEventMissing        = errors.New("event not found in ledger")
	ErrRegistrationMissing = errors.New("registration not found in ledger")
	ErrDuplicateActive     = errors.New("active registration already exists for member and event")
	ErrVersionConflict     = errors.New("registration version conflict")
)

// EventTx exposes the queries and the insert available inside a per-event
// critical section. All calls observe and mutate a consistent view of the
// event's registration set.
type EventTx interface {
	ActiveCount(ctx context.Context) (int, error)
	ActiveRegistration(ctx context.Context, memberID uuid.UUID) (*Registration, error)
	Insert(ctx context.Context, reg *Registration) error
}

// Ledger stores registration records. It is pure data access: the admission
// rules live in the service, which runs them inside WithinEvent so the
// capacity and uniqueness checks and the insert form one atomic unit.
type Ledger interface {
	// WithinEvent runs fn inside a critical section scoped to the event's
	// registration set. The postgres implementation takes a row lock on the
	// event; the in-memory implementation holds a per-event mutex. Returns
	// ErrEventMissing when the event does not exist.
	WithinEvent(ctx context.Context, eventID uuid.UUID, fn func(ev EventSnapshot, tx EventTx) error) error

	// Event reads the event snapshot without locking.
	Event(ctx context.Context, eventID uuid.UUID) (*EventSnapshot, error)

	// ActiveRegistration returns the active registration for the pair, or
	// ErrRegistrationMissing.
	ActiveRegistration(ctx context.Context, memberID, eventID uuid.UUID) (*Registration, error)

	// ActiveCountForEvent counts active registrations for an event.
	ActiveCountForEvent(ctx context.Context, eventID uuid.UUID) (int, error)

	// ListActiveForMember returns the member's active registrations, newest
	// first.
	ListActiveForMember(ctx context.Context, memberID uuid.UUID) ([]*Registration, error)

	// Update persists a mutated registration using its version for optimistic
	// concurrency. Returns ErrVersionConflict when the row changed underneath.
	Update(ctx context.Context, reg *Registration) error
}
