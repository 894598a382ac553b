// internal/registration/service.go
package registration

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the admission controller.
type Service interface {
	Register(ctx context.Context, memberID, eventID uuid.UUID) (*Registration, error)
	Cancel(ctx context.Context, memberID, eventID uuid.UUID) error
	Rate(ctx context.Context, memberID, eventID uuid.UUID, rating int, feedback string) (*Registration, error)
	ListForMember(ctx context.Context, memberID uuid.UUID) ([]*Registration, error)
}

// AuditLog records registration lifecycle events. expectedVersion implements
// optimistic concurrency on the per-registration stream.
type AuditLog interface {
	Append(ctx context.Context, registrationID uuid.UUID, eventType string, payload interface{}, expectedVersion int) error
}

// Notifier delivers the registration confirmation. Delivery is best-effort
// and must never affect the admission outcome.
type Notifier interface {
	NotifyRegistered(ctx context.Context, memberID, eventID uuid.UUID) error
}
