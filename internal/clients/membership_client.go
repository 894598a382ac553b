// internal/clients/membership_client.go
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"eduevents/internal/membership"

	"github.com/google/uuid"
)

// ErrMemberNotFound is returned when the membership service has no record of
// the requested member.
var ErrMemberNotFound = fmt.Errorf("member not found")

// MembershipClient talks to the membership service over HTTP.
type MembershipClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewMembershipClient(baseURL string) *MembershipClient {
	return &MembershipClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// GetMember fetches a member, including the profile fields used for
// personalization.
func (c *MembershipClient) GetMember(ctx context.Context, id uuid.UUID) (*membership.Member, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/members/%s", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrMemberNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var member membership.Member
	if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
		return nil, err
	}

	return &member, nil
}
