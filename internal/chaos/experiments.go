// internal/chaos/experiments.go
package chaos

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

func serviceURL(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// RegisterExperiments registers all predefined chaos experiments with the engine.
func (e *Engine) RegisterExperiments() {
	e.RegisterExperiment(e.DatabaseLatencyExperiment(250 * time.Millisecond))
	e.RegisterExperiment(e.SearchBackendFailureExperiment())
	e.RegisterExperiment(e.ConcurrentRegistrationRaceConditionTest())
	e.RegisterExperiment(e.ScorerOutageExperiment())
	e.RegisterExperiment(e.ResourceExhaustionExperiment())
}

// DatabaseLatencyExperiment injects latency into database operations
func (e *Engine) DatabaseLatencyExperiment(targetLatency time.Duration) Experiment {
	latencyInjected := false
	_ = latencyInjected
	var originalDB *sql.DB

	return Experiment{
		Name:       "database-latency-injection",
		Hypothesis: "System degrades gracefully when database latency exceeds threshold",
		SteadyState: []Metric{
			{
				Name: "registration_success_rate",
				Query: func(ctx context.Context) (float64, error) {
					var successRate float64
					err := e.db.QueryRowContext(ctx, `
						SELECT COALESCE(
							COUNT(*) FILTER (WHERE state = 'active')::float / NULLIF(COUNT(*)::float, 0) * 100,
							100.0
						) FROM registrations WHERE created_at > NOW() - INTERVAL '1 minute'
					`).Scan(&successRate)
					return successRate, err
				},
				Threshold: Threshold{Operator: ">", Value: 99.0},
			},
		},
		Method: []Action{
			{
				Type:   "inject-latency",
				Target: "postgres-primary",
				Parameters: map[string]interface{}{
					"latency": targetLatency,
					"jitter":  50 * time.Millisecond,
				},
				Execute: func(ctx context.Context) error {
					// Wrap database calls with artificial latency
					latencyInjected = true
					originalDB = e.db
					// In production, this would use a proxy or network policy
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "remove-latency",
				Target: "postgres-primary",
				Execute: func(ctx context.Context) error {
					latencyInjected = false
					e.db = originalDB
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "registration_success_rate",
				Condition: func(v float64) bool { return v > 95.0 },
				Message:   "Registration success rate should remain above 95%",
			},
		},
		Duration:    5 * time.Minute,
		BlastRadius: 1.0,
	}
}

// SearchBackendFailureExperiment validates the catalog's search fallback
func (e *Engine) SearchBackendFailureExperiment() Experiment {
	searchBackendKilled := false
	_ = searchBackendKilled

	return Experiment{
		Name:       "search-backend-failure",
		Hypothesis: "Catalog searches fall back to database full-text search when the search backend is unavailable",
		SteadyState: []Metric{
			{
				Name: "search_availability",
				Query: func(ctx context.Context) (float64, error) {
					resp, err := http.Get(serviceURL("CATALOG_SERVICE_URL", "http://localhost:8081") + "/events/search?q=workshop")
					if err != nil {
						return 0.0, nil
					}
					resp.Body.Close()
					if resp.StatusCode != http.StatusOK {
						return 0.0, nil
					}
					return 100.0, nil
				},
				Threshold: Threshold{Operator: ">", Value: 99.0},
			},
		},
		Method: []Action{
			{
				Type:   "kill-pod",
				Target: "meilisearch",
				Parameters: map[string]interface{}{
					"mode":     "fixed",
					"interval": "0s",
				},
				Execute: func(ctx context.Context) error {
					searchBackendKilled = true
					// In production: kubectl delete pod meilisearch-xyz
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "restore-pod",
				Target: "meilisearch",
				Execute: func(ctx context.Context) error {
					searchBackendKilled = false
					// In production: kubectl scale deployment meilisearch --replicas=1
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "search_availability",
				Condition: func(v float64) bool { return v > 95.0 },
				Message:   "Search should maintain 95% availability via fallback",
			},
		},
		Duration:    2 * time.Minute,
		BlastRadius: 0.5,
	}
}

// ConcurrentRegistrationRaceConditionTest validates the admission critical section
func (e *Engine) ConcurrentRegistrationRaceConditionTest() Experiment {
	return Experiment{
		Name:       "concurrent-registration-race-condition",
		Hypothesis: "System prevents overbooking and duplicate registrations when many registrations arrive simultaneously",
		SteadyState: []Metric{
			{
				Name: "data_consistency",
				Query: func(ctx context.Context) (float64, error) {
					var inconsistencies int
					err := e.db.QueryRowContext(ctx, `
						SELECT
							(SELECT COUNT(*) FROM events e
							 WHERE (SELECT COUNT(*) FROM registrations r
							        WHERE r.event_id = e.id AND r.state = 'active') > e.capacity)
							+
							(SELECT COUNT(*) FROM (
								SELECT member_id, event_id FROM registrations
								WHERE state = 'active'
								GROUP BY member_id, event_id HAVING COUNT(*) > 1
							) dupes)
					`).Scan(&inconsistencies)
					return float64(inconsistencies), err
				},
				Threshold: Threshold{Operator: "==", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "registration-service",
				Parameters: map[string]interface{}{
					"concurrency": 100,
					"event_id":    "same-event",
				},
				Execute: func(ctx context.Context) error {
					// Fire 100 concurrent registrations for the same event.
					// Past capacity they should fail with EVENT_FULL, never overbook.
					base := serviceURL("REGISTRATION_SERVICE_URL", "http://localhost:8082")
					eventID := serviceURL("CHAOS_EVENT_ID", "")
					if eventID == "" {
						return nil
					}

					var wg sync.WaitGroup
					for i := 0; i < 100; i++ {
						wg.Add(1)
						go func(n int) {
							defer wg.Done()
							body := fmt.Sprintf(`{"member_id":"chaos-member-%d","event_id":"%s"}`, n, eventID)
							resp, err := http.Post(base+"/registrations", "application/json", bytes.NewBufferString(body))
							if err != nil {
								return
							}
							resp.Body.Close()
						}(i)
					}
					wg.Wait()
					return nil
				},
			},
		},
		Rollback: []Action{},
		Validation: []Assertion{
			{
				Metric:    "data_consistency",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "No overbooked events or duplicate active registrations should exist",
			},
		},
		Duration:    30 * time.Second,
		BlastRadius: 0.1,
	}
}

// ScorerOutageExperiment tests the recommendation fallback cascade
func (e *Engine) ScorerOutageExperiment() Experiment {
	return Experiment{
		Name:       "recommendation-scorer-outage",
		Hypothesis: "Recommendations stay available via content and popularity fallbacks when the scorer is down",
		SteadyState: []Metric{
			{
				Name: "recommendation_availability",
				Query: func(ctx context.Context) (float64, error) {
					memberID := serviceURL("CHAOS_MEMBER_ID", "")
					if memberID == "" {
						return 100.0, nil
					}
					resp, err := http.Get(serviceURL("RECOMMENDATION_SERVICE_URL", "http://localhost:8084") + "/recommendations/" + memberID)
					if err != nil {
						return 0.0, nil
					}
					resp.Body.Close()
					if resp.StatusCode != http.StatusOK {
						return 0.0, nil
					}
					return 100.0, nil
				},
				Threshold: Threshold{Operator: "==", Value: 100.0},
			},
		},
		Method: []Action{
			{
				Type:   "network-partition",
				Target: "ai-scorer",
				Parameters: map[string]interface{}{
					"duration": "2m",
				},
				Execute: func(ctx context.Context) error {
					// In production: apply NetworkPolicy to block scorer traffic
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "restore-network",
				Target: "ai-scorer",
				Execute: func(ctx context.Context) error {
					// Remove NetworkPolicy
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric: "recommendation_availability",
				Condition: func(v float64) bool {
					return v == 100.0
				},
				Message: "Recommendations must answer 200 throughout the scorer outage",
			},
		},
		Duration:    5 * time.Minute,
		BlastRadius: 0.3,
	}
}

// ResourceExhaustionExperiment tests system under resource pressure
func (e *Engine) ResourceExhaustionExperiment() Experiment {
	return Experiment{
		Name:       "database-connection-pool-exhaustion",
		Hypothesis: "Circuit breaker prevents cascading failures when connection pool is exhausted",
		SteadyState: []Metric{
			{
				Name: "error_rate",
				Query: func(ctx context.Context) (float64, error) {
					return 0.0, nil // Would query error metrics
				},
				Threshold: Threshold{Operator: "<", Value: 1.0},
			},
		},
		Method: []Action{
			{
				Type:   "exhaust-connections",
				Target: "postgres-connection-pool",
				Execute: func(ctx context.Context) error {
					// Open connections and hold them
					conns := make([]*sql.Conn, 0)
					for i := 0; i < 100; i++ {
						conn, err := e.db.Conn(ctx)
						if err != nil {
							break
						}
						conns = append(conns, conn)
					}
					// Hold connections for experiment duration
					time.Sleep(30 * time.Second)
					for _, conn := range conns {
						conn.Close()
					}
					return nil
				},
			},
		},
		Rollback: []Action{},
		Validation: []Assertion{
			{
				Metric:    "error_rate",
				Condition: func(v float64) bool { return v < 5.0 },
				Message:   "Error rate should stay below 5% due to circuit breaker",
			},
		},
		Duration:    2 * time.Minute,
		BlastRadius: 1.0,
	}
}
