package memory

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the deterministic hex digest of a piece of content. It is
// used as the blob key suffix for oversized chunks and as a deduplication
// signal; collisions are not checked against existing entries.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
