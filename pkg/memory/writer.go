package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cohesivestack/valgo"
	"github.com/google/uuid"
)

// Cache keys for the best-effort aggregate counters surfaced by the stats
// tool.
const (
	StatsKeyVectorCount = "stats:vector_count"
	StatsKeyLastUpdated = "stats:last_updated"
)

/*
Writer turns (content, provenance) pairs into stored units: hash, embed,
optionally offload oversized chunks to blob storage, then upsert into the
vector index. Units are never mutated after creation; the index and blob
store are the systems of record.
*/
type Writer struct {
	embedder Embedder
	index    VectorIndex
	blobs    BlobStore
	stats    StatsCache
	profile  ChunkProfile
	now      func() time.Time
}

type WriterOption func(*Writer)

func NewWriter(embedder Embedder, index VectorIndex, options ...WriterOption) *Writer {
	writer := &Writer{
		embedder: embedder,
		index:    index,
		profile:  FineProfile(),
		now:      time.Now,
	}

	for _, option := range options {
		option(writer)
	}

	return writer
}

// WithBlobStore enables offloading of chunks larger than PreviewMaxChars.
func WithBlobStore(blobs BlobStore) WriterOption {
	return func(w *Writer) { w.blobs = blobs }
}

// WithStatsCache enables best-effort counter refreshes after writes.
func WithStatsCache(stats StatsCache) WriterOption {
	return func(w *Writer) { w.stats = stats }
}

// WithProfile overrides the default fine chunking profile.
func WithProfile(profile ChunkProfile) WriterOption {
	return func(w *Writer) { w.profile = profile }
}

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// WriteRequest carries one piece of content plus its provenance.
type WriteRequest struct {
	Content   string
	Entity    string
	Platform  string
	Type      MemoryType
	Timestamp string
	Metadata  map[string]any
	// Profile optionally overrides the writer's chunking profile for this
	// request (bulk ingestion passes the coarse profile here).
	Profile *ChunkProfile
}

func (req *WriteRequest) validate() error {
	val := valgo.Is(
		valgo.String(req.Entity, "entity_name").Not().Blank(),
		valgo.String(req.Content, "content").Not().Blank(),
	)

	if !val.Valid() {
		return val.Error()
	}

	if !req.Type.IsValid() {
		return fmt.Errorf("invalid memory_type %q", req.Type)
	}

	return nil
}

// IngestResult reports the outcome of a chunked write.
type IngestResult struct {
	Written     int      `json:"written"`
	TotalChunks int      `json:"total_chunks"`
	IDs         []string `json:"ids"`
	Errors      []string `json:"errors,omitempty"`
}

/*
Ingest chunks long-form content and writes each chunk as its own unit.
Chunks are written in order; a failing chunk is reported and skipped, it
never aborts the rest of the batch. chunk_index/total_chunks always
reflect the chunk's position in the original ordering.
*/
func (w *Writer) Ingest(ctx context.Context, req WriteRequest) (*IngestResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	profile := w.profile

	if req.Profile != nil {
		profile = *req.Profile
	}

	chunks := Chunk(req.Content, profile)
	result := &IngestResult{TotalChunks: len(chunks)}

	for i, chunk := range chunks {
		id, err := w.writeUnit(ctx, &req, chunk, i, len(chunks), true)

		if err != nil {
			log.Error("failed to write chunk",
				"entity", req.Entity, "chunk", i, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("chunk %d: %v", i, err))
			continue
		}

		result.Written++
		result.IDs = append(result.IDs, id)
	}

	w.refreshStats(ctx, result.Written)

	return result, nil
}

/*
Store writes short atomic content as a single unit. No chunking, no
chunk-position metadata, no blob offload; collaborator failures propagate
to the caller.
*/
func (w *Writer) Store(ctx context.Context, req WriteRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	id, err := w.writeUnit(ctx, &req, req.Content, 0, 0, false)

	if err != nil {
		return "", err
	}

	w.refreshStats(ctx, 1)

	return id, nil
}

func (w *Writer) writeUnit(
	ctx context.Context, req *WriteRequest, content string, index, total int, chunked bool,
) (string, error) {
	hash := Hash(content)
	id := uuid.NewString()

	vector, err := w.embedder.Embed(ctx, content)

	if err != nil {
		return "", fmt.Errorf("failed to embed content: %w", err)
	}

	now := w.now().UTC().Format(time.RFC3339)
	timestamp := req.Timestamp

	if timestamp == "" {
		timestamp = now
	}

	metadata := map[string]any{
		KeyEntityName:     req.Entity,
		KeySourcePlatform: req.Platform,
		KeyMemoryType:     string(req.Type),
		KeyTimestamp:      timestamp,
		KeyTextPreview:    Preview(content),
		KeyChunkHash:      hash,
		KeyIngestedAt:     now,
		KeyNamespace:      req.Entity,
	}

	if chunked {
		metadata[KeyChunkIndex] = index
		metadata[KeyTotalChunks] = total
	}

	// Caller-supplied keys are applied last and may overwrite system keys.
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	if chunked && len(content) > PreviewMaxChars && w.blobs != nil {
		key := "chunks/" + hash + ".json"

		payload, err := json.Marshal(map[string]any{
			"hash":     hash,
			"text":     content,
			"metadata": metadata,
		})

		if err != nil {
			return "", fmt.Errorf("failed to marshal blob payload: %w", err)
		}

		if err := w.blobs.Put(ctx, key, payload); err != nil {
			return "", fmt.Errorf("failed to offload chunk to blob storage: %w", err)
		}

		metadata[KeyBlobKey] = key
	}

	point := Point{
		ID:        id,
		Vector:    vector,
		Namespace: req.Entity,
		Payload:   metadata,
	}

	if err := w.index.Upsert(ctx, []Point{point}); err != nil {
		return "", fmt.Errorf("failed to upsert unit: %w", err)
	}

	return id, nil
}

// refreshStats bumps the cached aggregate counters. Cache failures are a
// soft condition: logged at debug and otherwise ignored.
func (w *Writer) refreshStats(ctx context.Context, written int) {
	if w.stats == nil || written == 0 {
		return
	}

	count := 0

	if raw, err := w.stats.Get(ctx, StatsKeyVectorCount); err == nil {
		count, _ = strconv.Atoi(raw)
	}

	if err := w.stats.Set(ctx, StatsKeyVectorCount, strconv.Itoa(count+written)); err != nil {
		log.Debug("failed to refresh vector count", "error", err)
		return
	}

	if err := w.stats.Set(ctx, StatsKeyLastUpdated, w.now().UTC().Format(time.RFC3339)); err != nil {
		log.Debug("failed to refresh last updated", "error", err)
	}
}
