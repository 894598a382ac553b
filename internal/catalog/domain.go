// internal/catalog/domain.go
package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Event represents a campus event that members can register for.
type Event struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Description    string         `json:"description" db:"description"`
	Category       string         `json:"category" db:"category"`
	ScheduledAt    time.Time      `json:"scheduled_at" db:"scheduled_at"`
	Location       string         `json:"location" db:"location"`
	TargetAudience string         `json:"target_audience,omitempty" db:"target_audience"`
	Tags           pq.StringArray `json:"tags" db:"tags"`
	OrganizerID    uuid.UUID      `json:"organizer_id" db:"organizer_id"`
	Capacity       int            `json:"capacity" db:"capacity"`
	Active         bool           `json:"active" db:"active"`
	AverageRating  *float64       `json:"average_rating,omitempty" db:"average_rating"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
	Version        int            `json:"version" db:"version"`
}

// Categories lists the accepted event categories.
var Categories = []string{
	"Technology", "Business", "Arts", "Science", "Sports",
	"Workshop", "Seminar", "Conference", "Social",
}

// ValidCategory reports whether c is one of the accepted categories.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// AcceptsRegistrations reports whether the event can currently admit members.
func (e *Event) AcceptsRegistrations(now time.Time) bool {
	return e.Active && e.ScheduledAt.After(now)
}

// ListFilter narrows down event listings.
type ListFilter struct {
	Category string
	Search   string
	DateFrom time.Time
	DateTo   time.Time
	Limit    int
	Offset   int
}
