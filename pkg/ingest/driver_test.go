package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/theapemachine/trill-go/pkg/memory"
)

type call struct {
	name string
	args map[string]any
}

type fakeCaller struct {
	calls  []call
	err    error
	failAt int // 1-based call number to fail on; 0 means never
}

func (f *fakeCaller) CallTool(
	ctx context.Context, name string, arguments map[string]any,
) (string, error) {
	f.calls = append(f.calls, call{name: name, args: arguments})

	if f.err != nil && len(f.calls) == f.failAt {
		return "", f.err
	}

	return `{"written":2,"total_chunks":2,"ids":["a","b"]}`, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	return path
}

func TestDriverRunFile(t *testing.T) {
	ctx := context.Background()

	t.Run("MarkdownIngestsWholeDocument", func(t *testing.T) {
		caller := &fakeCaller{}
		path := writeFile(t, t.TempDir(), "notes.md", "# Notes\n\nSome content.")

		driver := NewDriver(caller, "alice",
			WithPlatform("obsidian"),
			WithMemoryType("note"),
			WithProfile(memory.ChunkProfile{MaxChars: 1500, OverlapChars: 200}),
		)

		report, err := driver.Run(ctx, path)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.Files != 1 || report.Written != 2 || len(report.Failures) != 0 {
			t.Fatalf("unexpected report: %+v", report)
		}

		if len(caller.calls) != 1 || caller.calls[0].name != "ingest" {
			t.Fatalf("expected one ingest call, got %v", caller.calls)
		}

		args := caller.calls[0].args

		if args["content"] != "# Notes\n\nSome content." {
			t.Fatalf("document content altered: %v", args["content"])
		}

		if args["entity_name"] != "alice" || args["source_platform"] != "obsidian" ||
			args["memory_type"] != "note" {
			t.Fatalf("provenance not forwarded: %v", args)
		}

		if args["max_chars"] != 1500 || args["overlap_chars"] != 200 {
			t.Fatalf("chunk profile not forwarded: %v", args)
		}
	})

	t.Run("ChatExportSplitsPerMessage", func(t *testing.T) {
		caller := &fakeCaller{}
		export := `{"messages":[
			{"role":"user","content":"hello","id":"m-1","timestamp":"2025-06-01T12:00:00Z"},
			{"role":"assistant","text":"hi there"},
			{"role":"user","content":""}
		]}`
		path := writeFile(t, t.TempDir(), "export.json", export)

		driver := NewDriver(caller, "alice")
		report, err := driver.Run(ctx, path)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// The empty message is skipped.
		if len(caller.calls) != 2 {
			t.Fatalf("expected 2 ingest calls, got %d", len(caller.calls))
		}

		first := caller.calls[0].args

		if first["content"] != "[user]: hello" {
			t.Fatalf("unexpected message line %v", first["content"])
		}

		if first["timestamp"] != "2025-06-01T12:00:00Z" {
			t.Fatalf("message timestamp not forwarded")
		}

		meta := first["metadata"].(map[string]any)

		if meta["message_id"] != "m-1" {
			t.Fatalf("message id not recorded: %v", meta)
		}

		second := caller.calls[1].args

		if second["content"] != "[assistant]: hi there" {
			t.Fatalf("text field not honoured: %v", second["content"])
		}

		if report.Written != 4 {
			t.Fatalf("written counts not aggregated: %d", report.Written)
		}
	})

	t.Run("ConversationListJoinsMessages", func(t *testing.T) {
		caller := &fakeCaller{}
		export := `{"conversations":[{
			"id":"c-1","title":"Catch up",
			"messages":[
				{"role":"user","content":"hello"},
				{"role":"assistant","content":"hi"}
			]
		}]}`
		path := writeFile(t, t.TempDir(), "conversations.json", export)

		driver := NewDriver(caller, "alice")

		if _, err := driver.Run(ctx, path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(caller.calls) != 1 {
			t.Fatalf("expected one call per conversation, got %d", len(caller.calls))
		}

		args := caller.calls[0].args

		if args["content"] != "[user]: hello\n\n[assistant]: hi" {
			t.Fatalf("unexpected transcript %q", args["content"])
		}

		meta := args["metadata"].(map[string]any)

		if meta["conversation_id"] != "c-1" || meta["conversation_title"] != "Catch up" {
			t.Fatalf("conversation metadata missing: %v", meta)
		}
	})

	t.Run("BareArraySplitsPerEntry", func(t *testing.T) {
		caller := &fakeCaller{}
		path := writeFile(t, t.TempDir(), "entries.json", `[{"a":1},{"b":2}]`)

		driver := NewDriver(caller, "alice")

		if _, err := driver.Run(ctx, path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(caller.calls) != 2 {
			t.Fatalf("expected one call per entry, got %d", len(caller.calls))
		}

		meta := caller.calls[1].args["metadata"].(map[string]any)

		if meta["entry_index"] != 1 {
			t.Fatalf("entry index missing: %v", meta)
		}
	})

	t.Run("MissingFileErrors", func(t *testing.T) {
		driver := NewDriver(&fakeCaller{}, "alice")

		if _, err := driver.Run(ctx, filepath.Join(t.TempDir(), "absent.md")); err == nil {
			t.Fatalf("expected error for missing file")
		}
	})
}

func TestDriverRunDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("WalksAllowedFiles", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "a.md", "doc a")
		writeFile(t, dir, "b.txt", "doc b")
		writeFile(t, dir, "skip.pdf", "binary")

		sub := filepath.Join(dir, "nested")

		if err := os.Mkdir(sub, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}

		writeFile(t, sub, "c.json", `{"messages":[{"role":"user","content":"hi"}]}`)

		caller := &fakeCaller{}
		driver := NewDriver(caller, "alice")

		report, err := driver.Run(ctx, dir)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.Files != 3 {
			t.Fatalf("expected 3 ingested files, got %d", report.Files)
		}

		if report.Written != 6 {
			t.Fatalf("written counts not aggregated: %d", report.Written)
		}

		for _, c := range caller.calls {
			if fmt.Sprint(c.args["content"]) == "binary" {
				t.Fatalf("disallowed extension was ingested")
			}
		}
	})

	t.Run("FailingFileIsIsolated", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "a.md", "doc a")
		writeFile(t, dir, "b.md", "doc b")

		caller := &fakeCaller{err: errors.New("service down"), failAt: 1}
		driver := NewDriver(caller, "alice")

		report, err := driver.Run(ctx, dir)

		if err != nil {
			t.Fatalf("one failing file must not abort the run: %v", err)
		}

		if report.Files != 2 || report.Written != 2 {
			t.Fatalf("unexpected report: %+v", report)
		}

		if len(report.Failures) != 1 {
			t.Fatalf("expected the failure recorded, got %v", report.Failures)
		}
	})
}
