package memory

import (
	"context"
	"errors"
)

// Embedder represents a service capable of generating embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Point is one unit as the vector index stores it.
type Point struct {
	ID        string
	Vector    []float32
	Namespace string
	Payload   map[string]any
}

// Match is one ranked result from a vector query.
type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorIndex is the narrow surface this core needs from a vector
// database. Implementations provide their own per-key atomicity; the core
// never performs multi-key transactions.
type VectorIndex interface {
	Upsert(ctx context.Context, points []Point) error
	Query(ctx context.Context, vector []float32, filter map[string]string, topK int) ([]Match, error)
}

// BlobStore holds full chunk payloads that exceed the preview bound.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ErrCacheMiss is returned by StatsCache.Get when a key is absent. Callers
// treat it as a soft condition, never an error surface.
var ErrCacheMiss = errors.New("cache miss")

// StatsCache is a small key-value store for best-effort aggregate
// counters.
type StatsCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
