// internal/recommendation/store_postgres.go
package recommendation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"eduevents/internal/catalog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresStore reads the candidate and interaction data the orchestrator
// needs. All queries are read-only.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `
	e.id, e.name, e.description, e.category, e.scheduled_at, e.location,
	e.target_audience, e.tags, e.organizer_id, e.capacity, e.active,
	e.created_at, e.updated_at, e.version
`

func (s *PostgresStore) ActiveFutureEvents(ctx context.Context) ([]*catalog.Event, error) {
	var events []*catalog.Event
	err := s.db.SelectContext(ctx, &events, fmt.Sprintf(`
		SELECT %s
		FROM events e
		WHERE e.active = TRUE AND e.scheduled_at > NOW()
		ORDER BY e.scheduled_at ASC
	`, eventColumns))
	if err != nil {
		return nil, fmt.Errorf("query candidate events: %w", err)
	}
	return events, nil
}

type pastRow struct {
	catalog.Event
	PastRating *int `db:"past_rating"`
}

func (s *PostgresStore) PastRegistrations(ctx context.Context, memberID uuid.UUID) ([]PastRegistration, error) {
	var rows []pastRow
	err := s.db.SelectContext(ctx, &rows, fmt.Sprintf(`
		SELECT %s, r.rating AS past_rating
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		WHERE r.member_id = $1 AND r.state = 'active'
		ORDER BY r.created_at DESC
	`, eventColumns), memberID)
	if err != nil {
		return nil, fmt.Errorf("query past registrations: %w", err)
	}

	past := make([]PastRegistration, 0, len(rows))
	for _, row := range rows {
		past = append(past, PastRegistration{Event: row.Event, Rating: row.PastRating})
	}
	return past, nil
}

func (s *PostgresStore) PopularEvents(ctx context.Context, limit int) ([]*catalog.Event, error) {
	var events []*catalog.Event
	err := s.db.SelectContext(ctx, &events, fmt.Sprintf(`
		SELECT %s
		FROM events e
		LEFT JOIN (
			SELECT event_id, COUNT(*) AS active_count
			FROM registrations
			WHERE state = 'active'
			GROUP BY event_id
		) r ON r.event_id = e.id
		WHERE e.active = TRUE AND e.scheduled_at > NOW()
		ORDER BY COALESCE(r.active_count, 0) DESC, e.created_at DESC
		LIMIT $1
	`, eventColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("query popular events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) SearchEventIDs(ctx context.Context, terms []string, limit int) ([]uuid.UUID, error) {
	query := strings.TrimSpace(strings.Join(terms, " "))
	if query == "" {
		return nil, nil
	}

	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id
		FROM events
		WHERE active = TRUE AND scheduled_at > NOW()
		AND to_tsvector('english', name || ' ' || description || ' ' || array_to_string(tags, ' ')) @@ plainto_tsquery('english', $1)
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("full-text event search: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) EventByID(ctx context.Context, id uuid.UUID) (*catalog.Event, error) {
	event := &catalog.Event{}
	err := s.db.GetContext(ctx, event, fmt.Sprintf(`
		SELECT %s FROM events e WHERE e.id = $1
	`, eventColumns), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}
