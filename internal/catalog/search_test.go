// internal/catalog/search_test.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubMeilisearch fakes the subset of the Meilisearch HTTP API the catalog
// uses: document addition, document deletion, and search.
func stubMeilisearch(t *testing.T, hits []eventDocument) (*httptest.Server, *[]string) {
	t.Helper()

	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.RequestURI())
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/indexes/events/search":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"hits":               hits,
				"offset":             0,
				"limit":              10,
				"estimatedTotalHits": len(hits),
				"processingTimeMs":   1,
				"query":              "",
			})
		default:
			// Document addition and deletion both enqueue a task.
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"taskUid":    0,
				"indexUid":   "events",
				"status":     "enqueued",
				"type":       "documentAdditionOrUpdate",
				"enqueuedAt": time.Now().UTC().Format(time.RFC3339),
			})
		}
	}))
	return server, &requests
}

func TestSearchIndexIndexesWithPrimaryKey(t *testing.T) {
	server, requests := stubMeilisearch(t, nil)
	defer server.Close()

	index := NewSearchIndex(server.URL, "")
	event := &Event{
		ID:       uuid.New(),
		Name:     "Go Workshop",
		Category: "Technology",
		Tags:     []string{"golang"},
	}
	require.NoError(t, index.IndexEvent(context.Background(), event))

	require.NotEmpty(t, *requests)
	assert.Contains(t, (*requests)[0], "/indexes/events/documents")
	assert.Contains(t, (*requests)[0], "primaryKey=id")
}

func TestSearchIndexReturnsHitIDsInOrder(t *testing.T) {
	first, second := uuid.New().String(), uuid.New().String()
	server, _ := stubMeilisearch(t, []eventDocument{
		{ID: first, Name: "Go Workshop"},
		{ID: second, Name: "Go Conference"},
	})
	defer server.Close()

	index := NewSearchIndex(server.URL, "")
	ids, err := index.Search(context.Background(), "go", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, ids)
}

func TestSearchIndexRemoveEvent(t *testing.T) {
	server, requests := stubMeilisearch(t, nil)
	defer server.Close()

	index := NewSearchIndex(server.URL, "")
	id := uuid.New().String()
	require.NoError(t, index.RemoveEvent(context.Background(), id))

	require.NotEmpty(t, *requests)
	assert.Contains(t, (*requests)[0], "/indexes/events/documents/"+id)
}

func TestSearchIndexSurfacesBackendErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	index := NewSearchIndex(server.URL, "")
	_, err := index.Search(context.Background(), "go", 10)
	assert.Error(t, err)
}

// setupCatalogDB attempts to connect to a PostgreSQL database for testing.
// It skips the test if the connection cannot be established.
func setupCatalogDB(t testing.TB) *sqlx.DB {
	t.Helper()

	pgUser := os.Getenv("PGUSER")
	pgPassword := os.Getenv("PGPASSWORD")
	pgHost := os.Getenv("PGHOST")
	pgPort := os.Getenv("PGPORT")
	pgDB := os.Getenv("PGDATABASE")

	if pgUser == "" {
		pgUser = "user"
	}
	if pgPassword == "" {
		pgPassword = "password"
	}
	if pgHost == "" {
		pgHost = "localhost"
	}
	if pgPort == "" {
		pgPort = "5432"
	}
	if pgDB == "" {
		pgDB = "testdb"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pgHost, pgPort, pgUser, pgPassword, pgDB)

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("skipping catalog search tests: could not connect to postgres: %v", err)
	}

	// Simple schema for testing
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			scheduled_at TIMESTAMPTZ NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			target_audience TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			organizer_id UUID NOT NULL,
			capacity INT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			version INT NOT NULL DEFAULT 1
		);
		CREATE TABLE IF NOT EXISTS registrations (
			id UUID PRIMARY KEY,
			member_id UUID NOT NULL,
			event_id UUID NOT NULL,
			state TEXT NOT NULL DEFAULT 'active',
			attended BOOLEAN NOT NULL DEFAULT FALSE,
			rating INT,
			feedback TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			version INT NOT NULL DEFAULT 1
		);
	`)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return db
}

func TestSearchFallsBackToDatabaseWhenIndexDown(t *testing.T) {
	db := setupCatalogDB(t)
	defer db.Close()

	// An index whose backend is gone: every call fails with a connection
	// error, so Search must serve from postgres full-text search.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()
	index := NewSearchIndex(dead.URL, "")

	svc := NewService(db, index)
	created, err := svc.CreateEvent(context.Background(), NewEvent{
		Name:        "Go Microservices Workshop " + uuid.NewString(),
		Description: "hands-on golang session",
		Category:    "Technology",
		ScheduledAt: time.Now().Add(72 * time.Hour),
		OrganizerID: uuid.New(),
		Capacity:    20,
		Tags:        []string{"golang"},
	})
	require.NoError(t, err)

	events, err := svc.Search(context.Background(), "golang")
	require.NoError(t, err)

	found := false
	for _, ev := range events {
		if ev.ID == created.ID {
			found = true
		}
	}
	assert.True(t, found, "database fallback should find the event by its tags")
}
