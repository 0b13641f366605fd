package tools

// This file implements the five memory tools exposed over the protocol:
// search, get_grounding_context, ingest, store and stats. Builders carry
// the schemas, handlers execute against the core memory components.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/theapemachine/trill-go/pkg/memory"
)

// Toolset binds the tool handlers to their collaborators.
type Toolset struct {
	writer    *memory.Writer
	retriever *memory.Retriever
	assembler *memory.Assembler
	stats     memory.StatsCache
}

func NewToolset(
	writer *memory.Writer,
	retriever *memory.Retriever,
	assembler *memory.Assembler,
	stats memory.StatsCache,
) *Toolset {
	return &Toolset{
		writer:    writer,
		retriever: retriever,
		assembler: assembler,
		stats:     stats,
	}
}

// Register attaches all memory tools to the supplied MCP server instance.
func (t *Toolset) Register(srv *server.MCPServer) {
	srv.AddTool(buildSearchTool(), t.handleSearch)
	srv.AddTool(buildGroundingTool(), t.handleGrounding)
	srv.AddTool(buildIngestTool(), t.handleIngest)
	srv.AddTool(buildStoreTool(), t.handleStore)
	srv.AddTool(buildStatsTool(), t.handleStats)
}

// ---------------------------------------------------------------------------
// Tool builders (schema only – no execution logic)
// ---------------------------------------------------------------------------

func buildSearchTool() mcp.Tool {
	return mcp.NewTool(
		"search",
		mcp.WithDescription("Searches stored memories by semantic similarity, returning attributed results above the score threshold."),
		mcp.WithString("query",
			mcp.Description("Natural language query to search for"),
			mcp.Required(),
		),
		mcp.WithString("entity",
			mcp.Description("Restrict results to one entity ('all' for no restriction)"),
		),
		mcp.WithString("memory_type",
			mcp.Description("Restrict results to one memory type"),
			mcp.Enum("conversation", "document", "note", "reflection", "journal", "all"),
		),
		mcp.WithString("platform",
			mcp.Description("Restrict results to one source platform"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 10, max 20)"),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Similarity floor between 0 and 1 (default 0.7)"),
		),
	)
}

func buildGroundingTool() mcp.Tool {
	return mcp.NewTool(
		"get_grounding_context",
		mcp.WithDescription("Assembles a token-bounded bundle of attributed memories for session grounding. Topic 'recent' retrieves broadly significant memories."),
		mcp.WithString("topic",
			mcp.Description("Topic to ground on, or 'recent'"),
			mcp.Required(),
		),
		mcp.WithString("entity",
			mcp.Description("Entity to ground for ('all' for no restriction)"),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description("Token budget for the assembled context (default 2000)"),
		),
	)
}

func buildIngestTool() mcp.Tool {
	return mcp.NewTool(
		"ingest",
		mcp.WithDescription("Chunks long-form content and stores each chunk as an attributed, embedded memory unit."),
		mcp.WithString("content",
			mcp.Description("Long-form text to chunk and store"),
			mcp.Required(),
		),
		mcp.WithString("entity_name",
			mcp.Description("Namespace identifying whose memory this is"),
			mcp.Required(),
		),
		mcp.WithString("source_platform",
			mcp.Description("Origin system that produced this content"),
			mcp.Required(),
		),
		mcp.WithString("memory_type",
			mcp.Description("Provenance type of the content"),
			mcp.Enum("conversation", "document", "note", "reflection", "journal"),
			mcp.Required(),
		),
		mcp.WithString("timestamp",
			mcp.Description("Logical event time (defaults to ingestion time)"),
		),
		mcp.WithObject("metadata",
			mcp.Description("Arbitrary JSON metadata merged into each unit (caller keys win)"),
		),
		mcp.WithNumber("max_chars",
			mcp.Description("Chunk window width override in characters"),
		),
		mcp.WithNumber("overlap_chars",
			mcp.Description("Chunk overlap override in characters"),
		),
	)
}

func buildStoreTool() mcp.Tool {
	return mcp.NewTool(
		"store",
		mcp.WithDescription("Stores short atomic content as a single attributed memory unit, without chunking."),
		mcp.WithString("text",
			mcp.Description("Text to store as one unit"),
			mcp.Required(),
		),
		mcp.WithString("entity_name",
			mcp.Description("Namespace identifying whose memory this is"),
			mcp.Required(),
		),
		mcp.WithString("memory_type",
			mcp.Description("Provenance type of the content"),
			mcp.Enum("conversation", "document", "note", "reflection", "journal"),
			mcp.Required(),
		),
		mcp.WithString("source_platform",
			mcp.Description("Origin system that produced this content"),
		),
		mcp.WithString("timestamp",
			mcp.Description("Logical event time (defaults to ingestion time)"),
		),
		mcp.WithObject("metadata",
			mcp.Description("Arbitrary JSON metadata merged into the unit (caller keys win)"),
		),
	)
}

func buildStatsTool() mcp.Tool {
	return mcp.NewTool(
		"stats",
		mcp.WithDescription("Returns best-effort cached aggregate counters: approximate vector count and last update time."),
	)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (t *Toolset) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")

	if err != nil {
		return nil, err
	}

	results, err := t.retriever.Search(ctx, memory.SearchParams{
		Query:    query,
		Entity:   req.GetString("entity", memory.FilterAll),
		Type:     req.GetString("memory_type", memory.FilterAll),
		Platform: req.GetString("platform", memory.FilterAll),
		Limit:    req.GetInt("limit", memory.DefaultSearchLimit),
		MinScore: req.GetFloat("min_score", memory.DefaultMinScore),
	})

	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return jsonResult(map[string]any{
		"results": results,
		"count":   len(results),
	})
}

func (t *Toolset) handleGrounding(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := req.RequireString("topic")

	if err != nil {
		return nil, err
	}

	bundle, err := t.assembler.Assemble(
		ctx,
		topic,
		req.GetString("entity", memory.FilterAll),
		req.GetInt("max_tokens", memory.DefaultMaxTokens),
	)

	if err != nil {
		return nil, fmt.Errorf("grounding failed: %w", err)
	}

	return jsonResult(bundle)
}

func (t *Toolset) handleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	writeReq, err := writeRequestFrom(req, "content")

	if err != nil {
		return nil, err
	}

	if _, err := req.RequireString("source_platform"); err != nil {
		return nil, err
	}

	if maxChars := req.GetInt("max_chars", 0); maxChars > 0 {
		writeReq.Profile = &memory.ChunkProfile{
			MaxChars:     maxChars,
			OverlapChars: req.GetInt("overlap_chars", 0),
		}
	}

	result, err := t.writer.Ingest(ctx, *writeReq)

	if err != nil {
		return nil, fmt.Errorf("ingest failed: %w", err)
	}

	return jsonResult(result)
}

func (t *Toolset) handleStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	writeReq, err := writeRequestFrom(req, "text")

	if err != nil {
		return nil, err
	}

	id, err := t.writer.Store(ctx, *writeReq)

	if err != nil {
		return nil, fmt.Errorf("store failed: %w", err)
	}

	return jsonResult(map[string]string{"id": id, "status": "stored"})
}

func (t *Toolset) handleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// A missing or unreachable cache yields placeholders, never an error.
	stats := map[string]string{
		"vector_count": "unknown",
		"last_updated": "unknown",
	}

	if t.stats != nil {
		if count, err := t.stats.Get(ctx, memory.StatsKeyVectorCount); err == nil {
			stats["vector_count"] = count
		}

		if updated, err := t.stats.Get(ctx, memory.StatsKeyLastUpdated); err == nil {
			stats["last_updated"] = updated
		}
	}

	return jsonResult(stats)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// writeRequestFrom extracts the shared write arguments, with contentKey
// naming the argument carrying the text ("content" for ingest, "text" for
// store).
func writeRequestFrom(req mcp.CallToolRequest, contentKey string) (*memory.WriteRequest, error) {
	content, err := req.RequireString(contentKey)

	if err != nil {
		return nil, err
	}

	entity, err := req.RequireString("entity_name")

	if err != nil {
		return nil, err
	}

	memType, err := req.RequireString("memory_type")

	if err != nil {
		return nil, err
	}

	return &memory.WriteRequest{
		Content:   content,
		Entity:    entity,
		Platform:  req.GetString("source_platform", ""),
		Type:      memory.MemoryType(memType),
		Timestamp: req.GetString("timestamp", ""),
		Metadata:  metadataArg(req),
	}, nil
}

// metadataArg accepts metadata passed either as a JSON object or as a
// JSON-encoded string, depending on how the caller constructed the
// argument object.
func metadataArg(req mcp.CallToolRequest) map[string]any {
	raw, ok := req.GetArguments()["metadata"]

	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case map[string]any:
		return v
	case string:
		var meta map[string]any
		_ = json.Unmarshal([]byte(v), &meta) // meta stays nil on failure
		return meta
	}

	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)

	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(b)), nil
}
