package memory

import (
	"fmt"
	"strings"
)

const (
	fallbackField   = "unknown"
	fallbackContent = "(content unavailable)"
)

/*
FormatAttribution renders a retrieved unit's provenance header and content
into the canonical attributed block:

	[NOTE from alice | Source: claude | 2025-06-01T12:00:00Z]
	the content or its preview
	---

Every bracketed field is always present; missing values render as the
literal "unknown" and missing content as "(content unavailable)". This
block is the unit of display in search results and the unit of packing in
the grounding assembler.
*/
func FormatAttribution(metadata map[string]any, content string) string {
	memType := stringField(metadata, KeyMemoryType)
	entity := stringField(metadata, KeyEntityName)
	platform := stringField(metadata, KeySourcePlatform)
	timestamp := stringField(metadata, KeyTimestamp)

	if content == "" {
		content = fallbackContent
	}

	return fmt.Sprintf(
		"[%s from %s | Source: %s | %s]\n%s\n---",
		strings.ToUpper(memType), entity, platform, timestamp, content,
	)
}

// stringField pulls a non-empty string out of a payload map, falling back
// to "unknown". Payloads come back from the index as map[string]any, so
// non-string values are rendered through fmt.
func stringField(metadata map[string]any, key string) string {
	raw, ok := metadata[key]

	if !ok || raw == nil {
		return fallbackField
	}

	switch v := raw.(type) {
	case string:
		if v == "" {
			return fallbackField
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// EstimateTokens approximates the token count of text as ceil(len/4).
func EstimateTokens(text string) int {
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}
