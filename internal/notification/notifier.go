// internal/notification/notifier.go
package notification

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// Notifier delivers registration confirmations. Delivery is best-effort: a
// failed notification never affects the admission outcome.
type Notifier interface {
	NotifyRegistered(ctx context.Context, memberID, eventID uuid.UUID) error
}

// LogNotifier writes confirmations to the service log. It is the default when
// no mail transport is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyRegistered(ctx context.Context, memberID, eventID uuid.UUID) error {
	log.Printf("notification: member %s registered for event %s", memberID, eventID)
	return nil
}
