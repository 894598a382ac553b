// internal/membership/domain.go
package membership

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Member represents a registered platform member.
type Member struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	Email      string         `json:"email" db:"email"`
	Name       string         `json:"name" db:"name"`
	Role       string         `json:"role" db:"role"`
	Department string         `json:"department,omitempty" db:"department"`
	Year       int            `json:"year,omitempty" db:"year"`
	Interests  pq.StringArray `json:"interests" db:"interests"`
	Skills     pq.StringArray `json:"skills" db:"skills"`
	Status     string         `json:"status" db:"status"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
	Version    int            `json:"version" db:"version"`
}

// Credential represents a member's login credentials.
type Credential struct {
	MemberID     uuid.UUID `json:"member_id" db:"member_id"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Salt         string    `json:"-" db:"salt"`
}

// Profile carries the mutable profile fields used for personalization.
type Profile struct {
	Interests  []string `json:"interests"`
	Skills     []string `json:"skills"`
	Department string   `json:"department"`
	Year       int      `json:"year"`
}
