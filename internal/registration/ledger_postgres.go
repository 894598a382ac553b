// internal/registration/ledger_postgres.go
package registration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PostgresLedger persists registrations in PostgreSQL. The admission critical
// section is a transaction that locks the event row, so concurrent Register
// calls for the same event serialize on that lock.
type PostgresLedger struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// NewPostgresLedger creates a postgres-backed registration ledger.
func NewPostgresLedger(db *sqlx.DB) *PostgresLedger {
	return &PostgresLedger{
		db:     db,
		tracer: otel.Tracer("eduevents/registration"),
	}
}

type postgresEventTx struct {
	tx      *sqlx.Tx
	eventID uuid.UUID
}

func (p *postgresEventTx) ActiveCount(ctx context.Context) (int, error) {
	var count int
	err := p.tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM registrations
		WHERE event_id = $1 AND state = 'active'
	`, p.eventID)
	if err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return count, nil
}

func (p *postgresEventTx) ActiveRegistration(ctx context.Context, memberID uuid.UUID) (*Registration, error) {
	reg := &Registration{}
	err := p.tx.GetContext(ctx, reg, `
		SELECT id, member_id, event_id, state, attended, rating, feedback, created_at, updated_at, version
		FROM registrations
		WHERE member_id = $1 AND event_id = $2 AND state = 'active'
	`, memberID, p.eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationMissing
		}
		return nil, fmt.Errorf("query active registration: %w", err)
	}
	return reg, nil
}

func (p *postgresEventTx) Insert(ctx context.Context, reg *Registration) error {
	_, err := p.tx.ExecContext(ctx, `
		INSERT INTO registrations (id, member_id, event_id, state, attended, rating, feedback, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, reg.ID, reg.MemberID, reg.EventID, reg.State, reg.Attended, reg.Rating, reg.Feedback, reg.CreatedAt, reg.UpdatedAt, reg.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateActive
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// WithinEvent locks the event row for the duration of fn.
func (l *PostgresLedger) WithinEvent(ctx context.Context, eventID uuid.UUID, fn func(ev EventSnapshot, tx EventTx) error) error {
	ctx, span := l.tracer.Start(ctx, "ledger.within_event",
		trace.WithAttributes(attribute.String("event.id", eventID.String())),
	)
	defer span.End()

	tx, err := l.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var ev EventSnapshot
	err = tx.GetContext(ctx, &ev, `
		SELECT id, active, scheduled_at, capacity
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventMissing
		}
		return fmt.Errorf("lock event row: %w", err)
	}

	if err := fn(ev, &postgresEventTx{tx: tx, eventID: eventID}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit admission: %w", err)
	}
	return nil
}

// Event reads the event snapshot without a lock.
func (l *PostgresLedger) Event(ctx context.Context, eventID uuid.UUID) (*EventSnapshot, error) {
	ev := &EventSnapshot{}
	err := l.db.GetContext(ctx, ev, `
		SELECT id, active, scheduled_at, capacity
		FROM events
		WHERE id = $1
	`, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventMissing
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (l *PostgresLedger) ActiveRegistration(ctx context.Context, memberID, eventID uuid.UUID) (*Registration, error) {
	reg := &Registration{}
	err := l.db.GetContext(ctx, reg, `
		SELECT id, member_id, event_id, state, attended, rating, feedback, created_at, updated_at, version
		FROM registrations
		WHERE member_id = $1 AND event_id = $2 AND state = 'active'
	`, memberID, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationMissing
		}
		return nil, fmt.Errorf("query active registration: %w", err)
	}
	return reg, nil
}

func (l *PostgresLedger) ActiveCountForEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int
	err := l.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM registrations
		WHERE event_id = $1 AND state = 'active'
	`, eventID)
	if err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return count, nil
}

func (l *PostgresLedger) ListActiveForMember(ctx context.Context, memberID uuid.UUID) ([]*Registration, error) {
	var regs []*Registration
	err := l.db.SelectContext(ctx, &regs, `
		SELECT id, member_id, event_id, state, attended, rating, feedback, created_at, updated_at, version
		FROM registrations
		WHERE member_id = $1 AND state = 'active'
		ORDER BY created_at DESC
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// Update writes back a mutated registration, guarded by its version.
func (l *PostgresLedger) Update(ctx context.Context, reg *Registration) error {
	ctx, span := l.tracer.Start(ctx, "ledger.update",
		trace.WithAttributes(attribute.String("registration.id", reg.ID.String())),
	)
	defer span.End()

	res, err := l.db.ExecContext(ctx, `
		UPDATE registrations
		SET state = $1, attended = $2, rating = $3, feedback = $4, version = version + 1, updated_at = NOW()
		WHERE id = $5 AND version = $6
	`, reg.State, reg.Attended, reg.Rating, reg.Feedback, reg.ID, reg.Version)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	reg.Version++
	return nil
}

// isUniqueViolation reports whether err is a violation of the partial unique
// index over active (member, event) pairs.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsRetryable reports whether err is a transient persistence conflict worth
// retrying: serialization failures and deadlocks surface under contention for
// popular events.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
