package memory

import (
	"strings"
	"unicode/utf8"
)

// CharsPerToken approximates the token length of text; the grounding
// assembler and the fine chunk profile both use it.
const CharsPerToken = 4

// ChunkProfile holds the numeric parameters for one chunking pass. The
// breakpoint algorithm is identical for every profile.
type ChunkProfile struct {
	MaxChars     int
	OverlapChars int
}

// CoarseProfile is used for whole-document bulk ingestion.
func CoarseProfile() ChunkProfile {
	return ChunkProfile{MaxChars: 1500, OverlapChars: 200}
}

// FineProfile is used for protocol-driven ingestion: 400 tokens wide with
// a 50 token overlap, at the 4 chars/token approximation.
func FineProfile() ChunkProfile {
	return ChunkProfile{
		MaxChars:     400 * CharsPerToken,
		OverlapChars: 50 * CharsPerToken,
	}
}

// breakpoints are searched in the trailing half of each window; the one
// occurring latest wins. The cut is inclusive of the first delimiter
// character so sentence terminators stay with their chunk.
var breakpoints = []string{"\n\n", ". ", "? ", "! "}

// Chunk splits text into an ordered sequence of bounded, overlap-linked
// chunks. Text that already fits inside maxChars passes through as a
// single chunk, untrimmed. Longer text is cut by a sliding window that
// prefers natural breakpoints over hard boundaries, then each emitted
// chunk is whitespace-trimmed. Successive windows start overlapChars
// before the previous cut, with a minimum advance of one character to
// guard against overlapChars >= maxChars misconfiguration.
func Chunk(text string, profile ChunkProfile) []string {
	maxChars, overlap := profile.MaxChars, profile.OverlapChars

	if len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := start + maxChars

		if end >= len(text) {
			end = len(text)
		} else {
			window := text[start:end]
			half := maxChars / 2
			cut := -1

			for _, bp := range breakpoints {
				if idx := strings.LastIndex(window, bp); idx > half && idx > cut {
					cut = idx
				}
			}

			if cut > 0 {
				end = start + cut + 1
			} else {
				// Hard cut: back off to a rune start so a multibyte
				// character never straddles two chunks.
				for end > start+1 && !utf8.RuneStart(text[end]) {
					end--
				}
			}
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(text) {
			break
		}

		next := end - overlap

		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}

		if next <= start {
			next = start + 1

			for next < len(text) && !utf8.RuneStart(text[next]) {
				next++
			}
		}

		start = next
	}

	return chunks
}
