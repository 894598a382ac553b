// internal/auditlog/auditlog.go
package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrConcurrencyConflict is returned when the expected stream version does
	// not match the stored one.
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
)

// Entry is one immutable record in a registration's audit trail.
type Entry struct {
	ID             int64           `json:"id" db:"id"`
	RegistrationID uuid.UUID       `json:"registration_id" db:"registration_id"`
	EventType      string          `json:"event_type" db:"event_type"`
	Payload        json.RawMessage `json:"payload" db:"payload"`
	Version        int             `json:"version" db:"version"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Store is an append-only audit trail for registration lifecycle events.
// Registrations are soft-deleted, so this trail is the complete history.
type Store struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewStore creates a new audit log store.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer("eduevents/auditlog"),
	}
}

// Append atomically appends one entry with an optimistic version check on the
// registration's stream.
func (s *Store) Append(ctx context.Context, registrationID uuid.UUID, eventType string, payload interface{}, expectedVersion int) error {
	ctx, span := s.tracer.Start(ctx, "auditlog.append",
		trace.WithAttributes(
			attribute.String("registration.id", registrationID.String()),
			attribute.String("event.type", eventType),
			attribute.Int("expected.version", expectedVersion),
		),
	)
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM registration_events
		WHERE registration_id = $1
	`, registrationID).Scan(&currentVersion)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("query current version: %w", err)
	}

	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO registration_events (registration_id, event_type, payload, version, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, registrationID, eventType, data, expectedVersion+1, time.Now().UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrConcurrencyConflict
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// History returns the full audit trail of a registration in append order.
func (s *Store) History(ctx context.Context, registrationID uuid.UUID) ([]Entry, error) {
	ctx, span := s.tracer.Start(ctx, "auditlog.history",
		trace.WithAttributes(attribute.String("registration.id", registrationID.String())),
	)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, registration_id, event_type, payload, version, created_at
		FROM registration_events
		WHERE registration_id = $1
		ORDER BY version ASC
	`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RegistrationID, &e.EventType, &e.Payload, &e.Version, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	span.SetAttributes(attribute.Int("entries.loaded", len(entries)))
	return entries, nil
}

// CurrentVersion returns the latest stream version for a registration.
func (s *Store) CurrentVersion(ctx context.Context, registrationID uuid.UUID) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM registration_events
		WHERE registration_id = $1
	`, registrationID).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("query version: %w", err)
	}
	return version, nil
}
