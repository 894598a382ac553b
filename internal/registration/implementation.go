// internal/registration/implementation.go
package registration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// service implements the Service interface. It owns the admission rules and
// runs them inside the ledger's per-event critical section, so the capacity
// check and the insert are one atomic unit.
type service struct {
	ledger   Ledger
	audit    AuditLog
	notifier Notifier
	now      func() time.Time
	maxTries uint
}

// NewService creates a new admission controller. audit and notifier may be
// nil; both are side channels that never change the admission decision.
func NewService(ledger Ledger, audit AuditLog, notifier Notifier) Service {
	return &service{
		ledger:   ledger,
		audit:    audit,
		notifier: notifier,
		now:      time.Now,
		maxTries: 3,
	}
}

// Register admits a member to an event, or fails with a coded error. Transient
// persistence conflicts are retried with exponential backoff before a generic
// failure is surfaced.
func (s *service) Register(ctx context.Context, memberID, eventID uuid.UUID) (*Registration, error) {
	operation := func() (*Registration, error) {
		reg, err := s.admit(ctx, memberID, eventID)
		if err != nil {
			if IsRetryable(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return reg, nil
	}

	reg, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.maxTries),
	)
	if err != nil {
		var de *Error
		if errors.As(err, &de) {
			return nil, de
		}
		log.Printf("registration: register %s/%s failed: %v", memberID, eventID, err)
		return nil, E(CodeInternal, "failed to register for event")
	}

	s.recordAudit(ctx, reg.ID, "RegistrationCreated", RegistrationCreatedEvent{
		RegistrationID: reg.ID,
		MemberID:       memberID,
		EventID:        eventID,
	}, 0)
	s.notifyAsync(memberID, eventID)

	return reg, nil
}

// admit runs the admission checks and the insert inside the per-event
// critical section.
func (s *service) admit(ctx context.Context, memberID, eventID uuid.UUID) (*Registration, error) {
	var created *Registration

	err := s.ledger.WithinEvent(ctx, eventID, func(ev EventSnapshot, tx EventTx) error {
		now := s.now()
		if !ev.Active {
			return E(CodeEventInactive, "event is no longer active")
		}
		if !ev.ScheduledAt.After(now) {
			return E(CodeEventInPast, "cannot register for past events")
		}

		_, err := tx.ActiveRegistration(ctx, memberID)
		if err == nil {
			return E(CodeAlreadyRegistered, "already registered for this event")
		}
		if !errors.Is(err, ErrRegistrationMissing) {
			return err
		}

		count, err := tx.ActiveCount(ctx)
		if err != nil {
			return err
		}
		if count >= ev.Capacity {
			return E(CodeEventFull, "event is full")
		}

		created = &Registration{
			ID:        uuid.New(),
			MemberID:  memberID,
			EventID:   eventID,
			State:     StateActive,
			CreatedAt: now.UTC(),
			UpdatedAt: now.UTC(),
			Version:   1,
		}
		if err := tx.Insert(ctx, created); err != nil {
			if errors.Is(err, ErrDuplicateActive) {
				return E(CodeAlreadyRegistered, "already registered for this event")
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEventMissing) {
			return nil, E(CodeEventNotFound, "event not found")
		}
		return nil, err
	}
	return created, nil
}

// Cancel soft-deletes the member's active registration for the event.
func (s *service) Cancel(ctx context.Context, memberID, eventID uuid.UUID) error {
	reg, err := s.ledger.ActiveRegistration(ctx, memberID, eventID)
	if err != nil {
		if errors.Is(err, ErrRegistrationMissing) {
			return E(CodeRegistrationNotFound, "registration not found")
		}
		return fmt.Errorf("lookup registration: %w", err)
	}

	ev, err := s.ledger.Event(ctx, eventID)
	if err != nil {
		return fmt.Errorf("lookup event: %w", err)
	}
	if !ev.ScheduledAt.After(s.now()) {
		return E(CodeEventAlreadyStarted, "cannot cancel registration for ongoing or past events")
	}

	reg.State = StateCancelled
	if err := s.ledger.Update(ctx, reg); err != nil {
		return fmt.Errorf("cancel registration: %w", err)
	}

	s.recordAudit(ctx, reg.ID, "RegistrationCancelled", RegistrationCancelledEvent{
		RegistrationID: reg.ID,
		MemberID:       memberID,
		EventID:        eventID,
		CancelledAt:    s.now().UTC(),
	}, reg.Version-1)

	return nil
}

// Rate records a rating for an attended event. Re-rating overwrites the prior
// rating and feedback.
func (s *service) Rate(ctx context.Context, memberID, eventID uuid.UUID, rating int, feedback string) (*Registration, error) {
	reg, err := s.ledger.ActiveRegistration(ctx, memberID, eventID)
	if err != nil {
		if errors.Is(err, ErrRegistrationMissing) {
			return nil, E(CodeRegistrationNotFound, "registration not found")
		}
		return nil, fmt.Errorf("lookup registration: %w", err)
	}

	ev, err := s.ledger.Event(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("lookup event: %w", err)
	}
	if ev.ScheduledAt.After(s.now()) {
		return nil, E(CodeEventNotConcluded, "can only rate events that have ended")
	}

	reg.Rating = &rating
	reg.Feedback = feedback
	reg.Attended = true
	if err := s.ledger.Update(ctx, reg); err != nil {
		return nil, fmt.Errorf("rate registration: %w", err)
	}

	s.recordAudit(ctx, reg.ID, "RegistrationRated", RegistrationRatedEvent{
		RegistrationID: reg.ID,
		MemberID:       memberID,
		EventID:        eventID,
		Rating:         rating,
	}, reg.Version-1)

	return reg, nil
}

// ListForMember returns the member's active registrations, newest first.
func (s *service) ListForMember(ctx context.Context, memberID uuid.UUID) ([]*Registration, error) {
	return s.ledger.ListActiveForMember(ctx, memberID)
}

// recordAudit appends to the audit trail; failures are logged, never
// propagated.
func (s *service) recordAudit(ctx context.Context, registrationID uuid.UUID, eventType string, payload interface{}, expectedVersion int) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, registrationID, eventType, payload, expectedVersion); err != nil {
		log.Printf("registration: audit append %s for %s failed: %v", eventType, registrationID, err)
	}
}

// notifyAsync fires the confirmation without holding up the response.
func (s *service) notifyAsync(memberID, eventID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.NotifyRegistered(ctx, memberID, eventID); err != nil {
			log.Printf("registration: confirmation for member %s event %s failed: %v", memberID, eventID, err)
		}
	}()
}
