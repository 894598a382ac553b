// internal/catalog/service.go
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NewEvent carries the fields needed to create an event.
type NewEvent struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Location       string    `json:"location"`
	TargetAudience string    `json:"target_audience"`
	Tags           []string  `json:"tags"`
	OrganizerID    uuid.UUID `json:"organizer_id"`
	Capacity       int       `json:"capacity"`
}

// Service defines the interface for the event catalog service.
type Service interface {
	CreateEvent(ctx context.Context, req NewEvent) (*Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	ListEvents(ctx context.Context, filter ListFilter) ([]*Event, error)
	ListActiveFuture(ctx context.Context) ([]*Event, error)
	RetireEvent(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string) ([]*Event, error)
}
