// internal/recommendation/implementation.go
package recommendation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"eduevents/internal/catalog"
	"eduevents/internal/clients"
	"eduevents/internal/membership"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// resultLimit bounds the content-matched and popularity tiers.
const resultLimit = 5

// service implements the Service interface. It degrades through three tiers:
// remote scoring, content matching, popularity ranking. Tier failures are
// logged and swallowed; the caller always receives a result list.
type service struct {
	store     Store
	directory Directory
	scorer    clients.Recommender
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService creates a new recommendation orchestrator. scorer may be nil,
// which disables the scored tier entirely.
func NewService(store Store, directory Directory, scorer clients.Recommender) Service {
	return &service{
		store:     store,
		directory: directory,
		scorer:    scorer,
		tracer:    otel.Tracer("eduevents/recommendation"),
		now:       time.Now,
	}
}

// Recommend produces an ordered event list for the member.
func (s *service) Recommend(ctx context.Context, memberID uuid.UUID) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "recommendation.recommend",
		trace.WithAttributes(attribute.String("member.id", memberID.String())),
	)
	defer span.End()

	member, err := s.directory.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, clients.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("resolve member: %w", err)
	}

	past, err := s.store.PastRegistrations(ctx, memberID)
	if err != nil {
		log.Printf("recommendation: loading past registrations for %s failed: %v", memberID, err)
		past = nil
	}

	candidates, err := s.store.ActiveFutureEvents(ctx)
	if err != nil {
		log.Printf("recommendation: loading candidates failed: %v", err)
		candidates = nil
	}

	if s.scorer != nil && len(past) > 0 && len(member.Interests)+len(member.Skills) > 0 {
		if events, ok := s.scoredTier(ctx, member, past, candidates); ok {
			span.SetAttributes(attribute.String("tier", string(TierScored)))
			return &Result{Tier: TierScored, Events: events}, nil
		}
	}

	interests := effectiveInterests(member)
	if len(interests) > 0 {
		if events := s.contentTier(ctx, interests, candidates); len(events) > 0 {
			span.SetAttributes(attribute.String("tier", string(TierContentMatched)))
			return &Result{Tier: TierContentMatched, Events: events}, nil
		}
	}

	events, err := s.store.PopularEvents(ctx, resultLimit)
	if err != nil {
		log.Printf("recommendation: popularity ranking failed: %v", err)
		events = nil
	}
	span.SetAttributes(attribute.String("tier", string(TierPopularity)))
	return &Result{Tier: TierPopularity, Events: events}, nil
}

// effectiveInterests falls back to skills when the member lists no interests.
func effectiveInterests(member *membership.Member) []string {
	if len(member.Interests) > 0 {
		return member.Interests
	}
	return member.Skills
}

// scoredTier calls the remote scorer and re-resolves its ranking against the
// current candidate set. Returns false when the tier is disqualified: network
// error, timeout, open breaker, or zero surviving candidates.
func (s *service) scoredTier(ctx context.Context, member *membership.Member, past []PastRegistration, candidates []*catalog.Event) ([]*catalog.Event, bool) {
	req := clients.ScoreRequest{
		UserProfile: clients.UserProfile{
			Interests:  effectiveInterests(member),
			Skills:     member.Skills,
			Department: member.Department,
			Year:       member.Year,
		},
	}
	for _, p := range past {
		req.PastEvents = append(req.PastEvents, clients.PastEvent{
			EventID:     p.Event.ID.String(),
			Name:        p.Event.Name,
			Description: p.Event.Description,
			Category:    p.Event.Category,
			Tags:        p.Event.Tags,
			Rating:      p.Rating,
		})
	}
	for _, ev := range candidates {
		req.AllEvents = append(req.AllEvents, clients.CandidateEvent{
			EventID:        ev.ID.String(),
			Name:           ev.Name,
			Description:    ev.Description,
			Category:       ev.Category,
			Tags:           ev.Tags,
			TargetAudience: ev.TargetAudience,
		})
	}

	ids, err := s.scorer.Recommend(ctx, req)
	if err != nil {
		log.Printf("recommendation: scoring service unavailable, falling back: %v", err)
		return nil, false
	}

	// Re-resolve against current active/future events: an event that closed
	// or passed since scoring is dropped, the remote order is preserved for
	// the survivors.
	byID := make(map[string]*catalog.Event, len(candidates))
	for _, ev := range candidates {
		byID[ev.ID.String()] = ev
	}
	var survivors []*catalog.Event
	for _, id := range ids {
		if ev, ok := byID[id]; ok {
			survivors = append(survivors, ev)
		}
	}
	if len(survivors) == 0 {
		return nil, false
	}
	return survivors, true
}

// contentTier ranks candidates by tag/category overlap with the interest
// terms, folding in full-text matches on the indexed event text.
func (s *service) contentTier(ctx context.Context, interests []string, candidates []*catalog.Event) []*catalog.Event {
	if len(candidates) == 0 {
		return nil
	}

	terms := make(map[string]bool, len(interests))
	for _, interest := range interests {
		terms[strings.ToLower(strings.TrimSpace(interest))] = true
	}

	textMatches := make(map[uuid.UUID]bool)
	if ids, err := s.store.SearchEventIDs(ctx, interests, resultLimit*2); err != nil {
		log.Printf("recommendation: full-text match failed: %v", err)
	} else {
		for _, id := range ids {
			textMatches[id] = true
		}
	}

	type scored struct {
		event *catalog.Event
		score int
	}
	var matched []scored
	for _, ev := range candidates {
		score := 0
		if terms[strings.ToLower(ev.Category)] {
			score += 2
		}
		for _, tag := range ev.Tags {
			if terms[strings.ToLower(tag)] {
				score++
			}
		}
		if textMatches[ev.ID] {
			score++
		}
		if score > 0 {
			matched = append(matched, scored{event: ev, score: score})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		return matched[i].event.ScheduledAt.Before(matched[j].event.ScheduledAt)
	})

	limit := resultLimit
	if len(matched) < limit {
		limit = len(matched)
	}
	events := make([]*catalog.Event, 0, limit)
	for _, m := range matched[:limit] {
		events = append(events, m.event)
	}
	return events
}

// Explain reports why an event would be recommended to the member.
func (s *service) Explain(ctx context.Context, memberID, eventID uuid.UUID) (*Explanation, error) {
	member, err := s.directory.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, clients.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("resolve member: %w", err)
	}

	event, err := s.store.EventByID(ctx, eventID)
	if err != nil {
		return nil, ErrEventNotFound
	}

	interests := make(map[string]bool, len(member.Interests))
	for _, interest := range member.Interests {
		interests[strings.ToLower(interest)] = true
	}

	explanation := &Explanation{EventName: event.Name}

	var matchingTags []string
	for _, tag := range event.Tags {
		if interests[strings.ToLower(tag)] {
			matchingTags = append(matchingTags, tag)
		}
	}
	if len(matchingTags) > 0 {
		explanation.Reasons = append(explanation.Reasons,
			"Matches your interests: "+strings.Join(matchingTags, ", "))
	}

	if interests[strings.ToLower(event.Category)] {
		explanation.Reasons = append(explanation.Reasons,
			"You're interested in "+event.Category+" events")
	}

	if member.Department != "" && event.TargetAudience != "" &&
		strings.Contains(strings.ToLower(event.TargetAudience), strings.ToLower(member.Department)) {
		explanation.Reasons = append(explanation.Reasons,
			"Targeted for "+member.Department+" students")
	}

	if len(explanation.Reasons) == 0 {
		explanation.Reasons = append(explanation.Reasons,
			"Popular event among members with similar profiles")
	}

	return explanation, nil
}
