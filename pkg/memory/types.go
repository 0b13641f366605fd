package memory

// MemoryType classifies the provenance of a stored unit.
type MemoryType string

const (
	TypeConversation MemoryType = "conversation"
	TypeDocument     MemoryType = "document"
	TypeNote         MemoryType = "note"
	TypeReflection   MemoryType = "reflection"
	TypeJournal      MemoryType = "journal"
)

// IsValid reports whether the MemoryType is one of the closed set.
func (t MemoryType) IsValid() bool {
	switch t {
	case TypeConversation, TypeDocument, TypeNote, TypeReflection, TypeJournal:
		return true
	}
	return false
}

// Metadata keys assigned by the writer. Caller-supplied metadata is merged
// after these, so a caller can shadow any of them.
const (
	KeyEntityName     = "entity_name"
	KeySourcePlatform = "source_platform"
	KeyMemoryType     = "memory_type"
	KeyTimestamp      = "timestamp"
	KeyTextPreview    = "text_preview"
	KeyChunkHash      = "chunk_hash"
	KeyChunkIndex     = "chunk_index"
	KeyTotalChunks    = "total_chunks"
	KeyIngestedAt     = "ingested_at"
	KeyBlobKey        = "blob_key"
	KeyNamespace      = "namespace"
)

// PreviewMaxChars bounds the text_preview stored alongside every unit,
// independent of the full content possibly held in blob storage.
const PreviewMaxChars = 500

// Preview truncates content to PreviewMaxChars for retrieval display.
func Preview(content string) string {
	if len(content) > PreviewMaxChars {
		return content[:PreviewMaxChars]
	}
	return content
}
