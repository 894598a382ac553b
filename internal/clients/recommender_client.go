// internal/clients/recommender_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// UserProfile is the member profile snapshot sent to the scoring service.
type UserProfile struct {
	Interests  []string `json:"interests"`
	Skills     []string `json:"skills"`
	Department string   `json:"department"`
	Year       int      `json:"year"`
}

// PastEvent is an event the member previously registered for.
type PastEvent struct {
	EventID     string   `json:"event_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Rating      *int     `json:"rating"`
}

// CandidateEvent is an event eligible for recommendation.
type CandidateEvent struct {
	EventID        string   `json:"event_id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	Tags           []string `json:"tags"`
	TargetAudience string   `json:"target_audience"`
}

// ScoreRequest is the payload for the remote scoring endpoint.
type ScoreRequest struct {
	UserProfile UserProfile      `json:"user_profile"`
	PastEvents  []PastEvent      `json:"past_events"`
	AllEvents   []CandidateEvent `json:"all_events"`
}

type scoreResponse struct {
	Recommendations []string `json:"recommendations"`
}

// Recommender scores candidate events for a member. Implementations must
// honor the context deadline and be safely cancellable.
type Recommender interface {
	Recommend(ctx context.Context, req ScoreRequest) ([]string, error)
}

// RecommenderClient calls the remote AI scoring service. Every call runs
// under a fixed deadline and through a circuit breaker: a slow or failing
// scorer trips the breaker instead of holding request-handling resources.
type RecommenderClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewRecommenderClient creates a scoring client with the given call deadline.
func NewRecommenderClient(baseURL string, timeout time.Duration) *RecommenderClient {
	return &RecommenderClient{
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: &http.Client{},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "ai-recommender",
			Interval: 60 * time.Second,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Recommend returns the scorer's ordered event IDs. Exceeding the deadline
// cancels the call; the abandoned response is discarded by the HTTP layer and
// never reaches the caller.
func (c *RecommenderClient) Recommend(ctx context.Context, req ScoreRequest) ([]string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.call(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (c *RecommenderClient) call(ctx context.Context, req ScoreRequest) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal score request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recommend", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call scoring service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scoring service returned status %d", resp.StatusCode)
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode score response: %w", err)
	}

	return decoded.Recommendations, nil
}
