// internal/recommendation/domain.go
package recommendation

import (
	"errors"

	"eduevents/internal/catalog"
)

// Tier identifies which strategy produced a recommendation result. It is
// reported for observability only and never persisted.
type Tier string

const (
	TierScored         Tier = "scored"
	TierContentMatched Tier = "content-matched"
	TierPopularity     Tier = "popularity"
)

// Result is an ordered list of recommended events plus the tier that
// produced it.
type Result struct {
	Tier   Tier             `json:"tier"`
	Events []*catalog.Event `json:"events"`
}

// PastRegistration pairs a member's active registration with its event and
// the rating the member gave, if any.
type PastRegistration struct {
	Event  catalog.Event
	Rating *int
}

// Explanation lists human-readable reasons an event was recommended.
type Explanation struct {
	EventName string   `json:"event_name"`
	Reasons   []string `json:"reasons"`
}

// ErrMemberNotFound is the only error Recommend surfaces: degradation is part
// of the contract, malformed input is not.
var ErrMemberNotFound = errors.New("member not found")

// ErrEventNotFound is returned by Explain for an unknown event.
var ErrEventNotFound = errors.New("event not found")
