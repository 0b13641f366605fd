package memory

import (
	"strings"
	"testing"
)

func TestMemoryTypeIsValid(t *testing.T) {
	valid := []MemoryType{
		TypeConversation, TypeDocument, TypeNote, TypeReflection, TypeJournal,
	}

	for _, mt := range valid {
		if !mt.IsValid() {
			t.Fatalf("expected %q to be valid", mt)
		}
	}

	for _, mt := range []MemoryType{"", "dream", "Conversation"} {
		if mt.IsValid() {
			t.Fatalf("expected %q to be invalid", mt)
		}
	}
}

func TestPreview(t *testing.T) {
	t.Run("ShortTextUnchanged", func(t *testing.T) {
		if Preview("hello") != "hello" {
			t.Fatalf("short text must pass through")
		}
	})

	t.Run("LongTextTruncated", func(t *testing.T) {
		preview := Preview(strings.Repeat("x", PreviewMaxChars+100))

		if len(preview) != PreviewMaxChars {
			t.Fatalf("expected %d chars, got %d", PreviewMaxChars, len(preview))
		}
	})
}
