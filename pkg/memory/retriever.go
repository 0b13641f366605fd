package memory

import (
	"context"
	"fmt"
)

const (
	// DefaultSearchLimit applies when a caller does not supply one.
	DefaultSearchLimit = 10
	// MaxSearchLimit caps every search regardless of the requested limit.
	MaxSearchLimit = 20
	// DefaultMinScore is the similarity floor for regular searches.
	DefaultMinScore = 0.7
	// FilterAll is the sentinel meaning "no restriction" for a filter
	// field.
	FilterAll = "all"
)

// Retriever embeds queries and resolves them against the vector index.
// It holds no state beyond its collaborators and is safe for concurrent
// use.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
}

func NewRetriever(embedder Embedder, index VectorIndex) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// SearchParams narrow a similarity search. Entity, Type and Platform are
// ignored when empty or "all".
type SearchParams struct {
	Query    string
	Entity   string
	Type     string
	Platform string
	Limit    int
	MinScore float64
}

// SearchResult is one surviving match, ready for display.
type SearchResult struct {
	ID          string         `json:"id"`
	Score       float64        `json:"score"`
	Preview     string         `json:"text_preview"`
	Metadata    map[string]any `json:"metadata"`
	Attribution string         `json:"attribution"`
}

/*
Search embeds the query, composes a metadata filter from the supplied
provenance fields, asks the index for the top matches and discards
everything scoring below MinScore. Results keep the index's descending
similarity order. Search has no side effects.
*/
func (r *Retriever) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	if params.Query == "" {
		return nil, fmt.Errorf("query is required")
	}

	vector, err := r.embedder.Embed(ctx, params.Query)

	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limit := params.Limit

	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	matches, err := r.index.Query(ctx, vector, composeFilter(params), limit)

	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	results := make([]SearchResult, 0, len(matches))

	for _, match := range matches {
		if match.Score < params.MinScore {
			continue
		}

		preview, _ := match.Payload[KeyTextPreview].(string)

		results = append(results, SearchResult{
			ID:          match.ID,
			Score:       match.Score,
			Preview:     preview,
			Metadata:    match.Payload,
			Attribution: FormatAttribution(match.Payload, preview),
		})
	}

	return results, nil
}

// composeFilter maps the non-empty, non-"all" provenance fields onto
// stored metadata keys. An empty filter means unrestricted.
func composeFilter(params SearchParams) map[string]string {
	filter := map[string]string{}

	if params.Entity != "" && params.Entity != FilterAll {
		filter[KeyEntityName] = params.Entity
	}

	if params.Type != "" && params.Type != FilterAll {
		filter[KeyMemoryType] = params.Type
	}

	if params.Platform != "" && params.Platform != FilterAll {
		filter[KeySourcePlatform] = params.Platform
	}

	return filter
}
