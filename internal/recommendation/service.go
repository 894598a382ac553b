// internal/recommendation/service.go
package recommendation

import (
	"context"

	"eduevents/internal/catalog"
	"eduevents/internal/membership"

	"github.com/google/uuid"
)

// Service defines the interface for the recommendation orchestrator.
type Service interface {
	Recommend(ctx context.Context, memberID uuid.UUID) (*Result, error)
	Explain(ctx context.Context, memberID, eventID uuid.UUID) (*Explanation, error)
}

// Store is the read model the orchestrator draws candidates from.
type Store interface {
	// ActiveFutureEvents returns the candidate set: active events whose
	// scheduled time is still ahead, soonest first.
	ActiveFutureEvents(ctx context.Context) ([]*catalog.Event, error)

	// PastRegistrations returns the member's active registrations with their
	// events, newest first.
	PastRegistrations(ctx context.Context, memberID uuid.UUID) ([]PastRegistration, error)

	// PopularEvents ranks active/future events by active-registration count,
	// ties broken by most recent creation time.
	PopularEvents(ctx context.Context, limit int) ([]*catalog.Event, error)

	// SearchEventIDs returns IDs of active/future events whose indexed
	// name/description/tags match any of the terms.
	SearchEventIDs(ctx context.Context, terms []string, limit int) ([]uuid.UUID, error)

	// EventByID fetches one event.
	EventByID(ctx context.Context, id uuid.UUID) (*catalog.Event, error)
}

// Directory resolves member profiles.
type Directory interface {
	GetMember(ctx context.Context, id uuid.UUID) (*membership.Member, error)
}
