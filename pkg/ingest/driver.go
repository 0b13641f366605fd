package ingest

// The bulk ingestion driver classifies source documents by shape, derives
// per-shape provenance metadata, and feeds everything through the
// service's ingest tool with the coarse chunking profile.

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/trill-go/pkg/memory"
)

// ToolCaller reaches the memory service; pkg/jsonrpc.RPCClient satisfies
// it.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]any) (string, error)
}

// DefaultExtensions is the allow-list applied in directory mode.
var DefaultExtensions = []string{".md", ".json", ".txt"}

// Driver runs bulk ingestion over files and directories.
type Driver struct {
	caller     ToolCaller
	entity     string
	platform   string
	memoryType string
	extensions []string
	profile    memory.ChunkProfile
}

type DriverOption func(*Driver)

func NewDriver(caller ToolCaller, entity string, options ...DriverOption) *Driver {
	driver := &Driver{
		caller:     caller,
		entity:     entity,
		platform:   "file",
		memoryType: string(memory.TypeConversation),
		extensions: DefaultExtensions,
		profile:    memory.CoarseProfile(),
	}

	for _, option := range options {
		option(driver)
	}

	return driver
}

func WithPlatform(platform string) DriverOption {
	return func(d *Driver) { d.platform = platform }
}

func WithMemoryType(memoryType string) DriverOption {
	return func(d *Driver) { d.memoryType = memoryType }
}

func WithExtensions(extensions []string) DriverOption {
	return func(d *Driver) { d.extensions = extensions }
}

func WithProfile(profile memory.ChunkProfile) DriverOption {
	return func(d *Driver) { d.profile = profile }
}

// Report aggregates the outcome of one bulk run. A failure on one file or
// message never aborts the remaining batch; it is recorded here instead.
type Report struct {
	Files    int      `json:"files"`
	Written  int      `json:"written"`
	Failures []string `json:"failures,omitempty"`
}

// Run ingests a single file or a directory tree.
func (d *Driver) Run(ctx context.Context, path string) (*Report, error) {
	info, err := os.Stat(path)

	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", path, err)
	}

	if !info.IsDir() {
		report := &Report{}
		d.ingestOne(ctx, path, report)
		return report, nil
	}

	report := &Report{}

	walkErr := filepath.WalkDir(path, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", p, err))
			return nil
		}

		if entry.IsDir() || !d.allowed(p) {
			return nil
		}

		d.ingestOne(ctx, p, report)
		return nil
	})

	if walkErr != nil {
		return nil, walkErr
	}

	return report, nil
}

func (d *Driver) allowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	for _, allowed := range d.extensions {
		if ext == allowed {
			return true
		}
	}

	return false
}

func (d *Driver) ingestOne(ctx context.Context, path string, report *Report) {
	written, err := d.ingestFile(ctx, path)
	report.Files++
	report.Written += written

	if err != nil {
		log.Error("failed to ingest file", "path", path, "error", err)
		report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", path, err))
		return
	}

	log.Info("ingested file", "path", path, "chunks", written)
}

func (d *Driver) ingestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return 0, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		return d.ingestText(ctx, string(data), "", nil)
	case ".json":
		return d.ingestJSON(ctx, data)
	default:
		return 0, fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
	}
}

// ingestJSON classifies a parsed document by shape: a bare array of
// opaque entries, a chat export ({messages: [...]}), a conversation list
// ({conversations: [...]}), or anything else stringified whole.
func (d *Driver) ingestJSON(ctx context.Context, data []byte) (int, error) {
	var parsed any

	if err := json.Unmarshal(data, &parsed); err != nil {
		return 0, fmt.Errorf("invalid JSON: %w", err)
	}

	switch doc := parsed.(type) {
	case []any:
		return d.ingestEntries(ctx, doc), nil
	case map[string]any:
		if messages, ok := doc["messages"].([]any); ok {
			return d.ingestMessages(ctx, messages), nil
		}

		if conversations, ok := doc["conversations"].([]any); ok {
			return d.ingestConversations(ctx, conversations), nil
		}
	}

	serialized, err := json.Marshal(parsed)

	if err != nil {
		return 0, err
	}

	return d.ingestText(ctx, string(serialized), "", nil)
}

func (d *Driver) ingestEntries(ctx context.Context, entries []any) int {
	written := 0

	for i, entry := range entries {
		serialized, err := json.Marshal(entry)

		if err != nil {
			log.Error("failed to serialize entry", "index", i, "error", err)
			continue
		}

		count, err := d.ingestText(ctx, string(serialized), "", map[string]any{"entry_index": i})

		if err != nil {
			log.Error("failed to ingest entry", "index", i, "error", err)
			continue
		}

		written += count
	}

	return written
}

func (d *Driver) ingestMessages(ctx context.Context, messages []any) int {
	written := 0

	for i, raw := range messages {
		message, ok := raw.(map[string]any)

		if !ok {
			continue
		}

		line := renderMessage(message)

		if line == "" {
			continue
		}

		meta := map[string]any{"message_id": stringOr(message, "unknown", "id", "message_id")}
		timestamp, _ := message["timestamp"].(string)

		count, err := d.ingestText(ctx, line, timestamp, meta)

		if err != nil {
			log.Error("failed to ingest message", "index", i, "error", err)
			continue
		}

		written += count
	}

	return written
}

func (d *Driver) ingestConversations(ctx context.Context, conversations []any) int {
	written := 0

	for i, raw := range conversations {
		conversation, ok := raw.(map[string]any)

		if !ok {
			continue
		}

		messages, _ := conversation["messages"].([]any)
		lines := make([]string, 0, len(messages))

		for _, rawMessage := range messages {
			if message, ok := rawMessage.(map[string]any); ok {
				if line := renderMessage(message); line != "" {
					lines = append(lines, line)
				}
			}
		}

		if len(lines) == 0 {
			continue
		}

		meta := map[string]any{
			"conversation_id":    stringOr(conversation, "unknown", "id", "conversation_id"),
			"conversation_title": stringOr(conversation, "", "title", "name"),
		}

		count, err := d.ingestText(ctx, strings.Join(lines, "\n\n"), "", meta)

		if err != nil {
			log.Error("failed to ingest conversation", "index", i, "error", err)
			continue
		}

		written += count
	}

	return written
}

// renderMessage builds the "[role]: content" line for one chat message.
func renderMessage(message map[string]any) string {
	role := stringOr(message, "unknown", "role", "author")
	content := stringOr(message, "", "content", "text")

	if content == "" {
		return ""
	}

	return fmt.Sprintf("[%s]: %s", role, content)
}

func stringOr(m map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}

	return fallback
}

// ingestText sends one document through the ingest tool, carrying the
// driver's coarse chunk profile as explicit overrides.
func (d *Driver) ingestText(
	ctx context.Context, content, timestamp string, extra map[string]any,
) (int, error) {
	args := map[string]any{
		"content":         content,
		"entity_name":     d.entity,
		"source_platform": d.platform,
		"memory_type":     d.memoryType,
		"max_chars":       d.profile.MaxChars,
		"overlap_chars":   d.profile.OverlapChars,
	}

	if timestamp != "" {
		args["timestamp"] = timestamp
	}

	if len(extra) > 0 {
		args["metadata"] = extra
	}

	text, err := d.caller.CallTool(ctx, "ingest", args)

	if err != nil {
		return 0, err
	}

	var result memory.IngestResult

	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return 0, fmt.Errorf("unexpected ingest response: %w", err)
	}

	return result.Written, nil
}
