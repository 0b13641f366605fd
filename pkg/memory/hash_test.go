package memory

import "testing"

func TestHash(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		if Hash("hello world") != Hash("hello world") {
			t.Fatalf("expected identical digests for identical input")
		}
	})

	t.Run("DistinctInputsDiffer", func(t *testing.T) {
		if Hash("hello world") == Hash("hello world!") {
			t.Fatalf("expected different digests for different inputs")
		}
	})

	t.Run("FixedLengthHex", func(t *testing.T) {
		digest := Hash("anything")

		if len(digest) != 64 {
			t.Fatalf("expected 64 hex chars, got %d", len(digest))
		}

		for _, c := range digest {
			if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
				t.Fatalf("unexpected character %q in digest", c)
			}
		}
	})
}
