// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// service implements the Service interface.
type service struct {
	db    *sqlx.DB
	index *SearchIndex
}

// NewService creates a new catalog service instance. index may be nil, in
// which case search is served from Postgres full-text queries only.
func NewService(db *sqlx.DB, index *SearchIndex) Service {
	return &service{db: db, index: index}
}

// CreateEvent inserts a new event into the catalog.
func (s *service) CreateEvent(ctx context.Context, req NewEvent) (*Event, error) {
	if req.Capacity < 1 {
		return nil, fmt.Errorf("capacity must be at least 1")
	}
	if !ValidCategory(req.Category) {
		return nil, fmt.Errorf("unknown category %q", req.Category)
	}

	tags := make([]string, 0, len(req.Tags))
	for _, tag := range req.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			tags = append(tags, tag)
		}
	}

	now := time.Now().UTC()
	event := &Event{
		ID:             uuid.New(),
		Name:           req.Name,
		Description:    req.Description,
		Category:       req.Category,
		ScheduledAt:    req.ScheduledAt,
		Location:       req.Location,
		TargetAudience: req.TargetAudience,
		Tags:           tags,
		OrganizerID:    req.OrganizerID,
		Capacity:       req.Capacity,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}

	query := `
		INSERT INTO events (id, name, description, category, scheduled_at, location, target_audience, tags, organizer_id, capacity, active, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.Name, event.Description, event.Category, event.ScheduledAt,
		event.Location, event.TargetAudience, event.Tags, event.OrganizerID,
		event.Capacity, event.Active, event.CreatedAt, event.UpdatedAt, event.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	s.reindex(ctx, event)
	return event, nil
}

// reindex pushes the event to the search index; index failures only degrade
// search and are not surfaced.
func (s *service) reindex(ctx context.Context, event *Event) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexEvent(ctx, event); err != nil {
		log.Printf("catalog: failed to index event %s: %v", event.ID, err)
	}
}

// GetEvent retrieves an event by its ID, including its average rating.
func (s *service) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	query := `
		SELECT e.id, e.name, e.description, e.category, e.scheduled_at, e.location,
		       e.target_audience, e.tags, e.organizer_id, e.capacity, e.active,
		       e.created_at, e.updated_at, e.version,
		       (SELECT AVG(r.rating)::float FROM registrations r WHERE r.event_id = e.id AND r.rating IS NOT NULL) AS average_rating
		FROM events e
		WHERE e.id = $1
	`
	event := &Event{}
	if err := s.db.GetContext(ctx, event, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event with ID %s not found", id)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// ListEvents returns active events matching the filter, newest first.
func (s *service) ListEvents(ctx context.Context, filter ListFilter) ([]*Event, error) {
	var (
		conds = []string{"e.active = TRUE"}
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Category != "" {
		conds = append(conds, "e.category = "+arg(filter.Category))
	}
	if !filter.DateFrom.IsZero() {
		conds = append(conds, "e.scheduled_at >= "+arg(filter.DateFrom))
	}
	if !filter.DateTo.IsZero() {
		conds = append(conds, "e.scheduled_at <= "+arg(filter.DateTo))
	}
	if filter.Search != "" {
		conds = append(conds, "to_tsvector('english', e.name || ' ' || e.description || ' ' || array_to_string(e.tags, ' ')) @@ plainto_tsquery('english', "+arg(filter.Search)+")")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := fmt.Sprintf(`
		SELECT e.id, e.name, e.description, e.category, e.scheduled_at, e.location,
		       e.target_audience, e.tags, e.organizer_id, e.capacity, e.active,
		       e.created_at, e.updated_at, e.version,
		       (SELECT AVG(r.rating)::float FROM registrations r WHERE r.event_id = e.id AND r.rating IS NOT NULL) AS average_rating
		FROM events e
		WHERE %s
		ORDER BY e.scheduled_at DESC
		LIMIT %s OFFSET %s
	`, strings.Join(conds, " AND "), arg(limit), arg(filter.Offset))

	var events []*Event
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// ListActiveFuture returns all active events whose scheduled time is still
// ahead, ordered by soonest first. This is the candidate set consumed by the
// recommendation service.
func (s *service) ListActiveFuture(ctx context.Context) ([]*Event, error) {
	query := `
		SELECT id, name, description, category, scheduled_at, location,
		       target_audience, tags, organizer_id, capacity, active,
		       created_at, updated_at, version
		FROM events
		WHERE active = TRUE AND scheduled_at > NOW()
		ORDER BY scheduled_at ASC
	`
	var events []*Event
	if err := s.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("list active future events: %w", err)
	}
	return events, nil
}

// RetireEvent deactivates an event so it no longer accepts registrations or
// shows up in listings.
func (s *service) RetireEvent(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET active = FALSE, version = version + 1, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("retire event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event with ID %s not found", id)
	}

	if s.index != nil {
		if err := s.index.RemoveEvent(ctx, id.String()); err != nil {
			log.Printf("catalog: failed to remove event %s from index: %v", id, err)
		}
	}
	return nil
}

// Search finds events by free text. Meilisearch serves the query when
// configured; otherwise Postgres full-text search is used.
func (s *service) Search(ctx context.Context, query string) ([]*Event, error) {
	if s.index != nil {
		events, err := s.searchIndex(ctx, query)
		if err == nil {
			return events, nil
		}
		log.Printf("catalog: search index unavailable, falling back to database: %v", err)
	}
	return s.searchDatabase(ctx, query)
}

func (s *service) searchIndex(ctx context.Context, query string) ([]*Event, error) {
	ids, err := s.index.Search(ctx, query, 10)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []*Event
	sel := `
		SELECT id, name, description, category, scheduled_at, location,
		       target_audience, tags, organizer_id, capacity, active,
		       created_at, updated_at, version
		FROM events
		WHERE active = TRUE AND id = ANY($1)
	`
	if err := s.db.SelectContext(ctx, &rows, sel, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("resolve search hits: %w", err)
	}

	// Preserve the index relevance order.
	byID := make(map[string]*Event, len(rows))
	for _, ev := range rows {
		byID[ev.ID.String()] = ev
	}
	events := make([]*Event, 0, len(ids))
	for _, id := range ids {
		if ev, ok := byID[id]; ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (s *service) searchDatabase(ctx context.Context, query string) ([]*Event, error) {
	sel := `
		SELECT id, name, description, category, scheduled_at, location,
		       target_audience, tags, organizer_id, capacity, active,
		       created_at, updated_at, version
		FROM events
		WHERE active = TRUE
		AND to_tsvector('english', name || ' ' || description || ' ' || array_to_string(tags, ' ')) @@ plainto_tsquery('english', $1)
		LIMIT 10
	`
	var events []*Event
	if err := s.db.SelectContext(ctx, &events, sel, query); err != nil {
		return nil, fmt.Errorf("database search failed: %w", err)
	}
	return events, nil
}
