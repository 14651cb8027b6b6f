package util

import (
	"strings"
	"testing"
)

func TestNewDocumentIDShape(t *testing.T) {
	id := NewDocumentID()
	parts := strings.SplitN(id, "-", 3)
	if len(parts) != 3 || parts[0] != "doc" {
		t.Fatalf("unexpected document id shape: %q", id)
	}
	if len(parts[2]) != 6 {
		t.Fatalf("unexpected suffix length in %q", id)
	}
	for _, r := range parts[2] {
		if !strings.ContainsRune(base36Alphabet, r) {
			t.Fatalf("suffix of %q contains non-base36 rune %q", id, r)
		}
	}
}

func TestNewDocumentIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := NewDocumentID()
		if seen[id] {
			t.Fatalf("duplicate document id %q", id)
		}
		seen[id] = true
	}
}
