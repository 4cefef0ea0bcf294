package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("topic")
	if !strings.HasPrefix(id, "topic_") {
		t.Fatalf("NewID() = %q, want topic_ prefix", id)
	}
	if len(id) != len("topic_")+32 {
		t.Fatalf("NewID() = %q, want 32 hex chars after prefix", id)
	}
	if other := NewID("topic"); other == id {
		t.Fatalf("NewID() returned %q twice", id)
	}
	if bare := NewID(""); strings.Contains(bare, "_") || len(bare) != 32 {
		t.Fatalf("NewID(\"\") = %q", bare)
	}
}
