// internal/catalog/search.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meilisearch/meilisearch-go"
)

// eventDocument is the shape indexed for full-text search.
type eventDocument struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

// SearchIndex maintains a Meilisearch index over event name, description and
// tags. It is optional: when no index is configured the catalog falls back to
// Postgres full-text search.
type SearchIndex struct {
	index meilisearch.IndexManager
}

// NewSearchIndex connects to a Meilisearch instance. apiKey may be empty for
// unsecured dev instances.
func NewSearchIndex(host, apiKey string) *SearchIndex {
	var opts []meilisearch.Option
	if apiKey != "" {
		opts = append(opts, meilisearch.WithAPIKey(apiKey))
	}
	client := meilisearch.New(host, opts...)
	return &SearchIndex{index: client.Index("events")}
}

// primaryKey is the document field Meilisearch keys the index on.
var primaryKey = "id"

// IndexEvent adds or updates an event document.
func (s *SearchIndex) IndexEvent(ctx context.Context, event *Event) error {
	doc := eventDocument{
		ID:          event.ID.String(),
		Name:        event.Name,
		Description: event.Description,
		Category:    event.Category,
		Tags:        event.Tags,
	}
	if _, err := s.index.AddDocumentsWithContext(ctx, []eventDocument{doc}, &primaryKey); err != nil {
		return fmt.Errorf("index event %s: %w", event.ID, err)
	}
	return nil
}

// RemoveEvent deletes an event document from the index.
func (s *SearchIndex) RemoveEvent(ctx context.Context, id string) error {
	if _, err := s.index.DeleteDocumentWithContext(ctx, id); err != nil {
		return fmt.Errorf("remove event %s from index: %w", id, err)
	}
	return nil
}

// Search returns matching event IDs in relevance order.
func (s *SearchIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	resp, err := s.index.SearchWithContext(ctx, query, &meilisearch.SearchRequest{
		Limit: int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	// Decode hits through JSON so we only depend on the document shape.
	raw, err := json.Marshal(resp.Hits)
	if err != nil {
		return nil, fmt.Errorf("marshal hits: %w", err)
	}
	var docs []eventDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}
