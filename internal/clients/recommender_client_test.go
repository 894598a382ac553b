// internal/clients/recommender_client_test.go
package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommenderClientReturnsRanking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/recommend", r.URL.Path)

		var req ScoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"golang"}, req.UserProfile.Interests)

		json.NewEncoder(w).Encode(map[string][]string{
			"recommendations": {"id-1", "id-2"},
		})
	}))
	defer server.Close()

	client := NewRecommenderClient(server.URL, time.Second)
	ids, err := client.Recommend(context.Background(), ScoreRequest{
		UserProfile: UserProfile{Interests: []string{"golang"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id-1", "id-2"}, ids)
}

func TestRecommenderClientEnforcesDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewRecommenderClient(server.URL, 50*time.Millisecond)

	start := time.Now()
	_, err := client.Recommend(context.Background(), ScoreRequest{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "call must be abandoned at the deadline")
}

func TestRecommenderClientRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewRecommenderClient(server.URL, time.Second)
	_, err := client.Recommend(context.Background(), ScoreRequest{})
	assert.Error(t, err)
}

func TestRecommenderClientBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewRecommenderClient(server.URL, time.Second)
	for i := 0; i < 5; i++ {
		_, err := client.Recommend(context.Background(), ScoreRequest{})
		require.Error(t, err)
	}

	// After three consecutive failures the breaker short-circuits and the
	// backend stops seeing traffic.
	assert.Equal(t, 3, calls)
}
