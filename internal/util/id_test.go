package util

import (
	"strings"
	"testing"
)

func TestNewIDPrefix(t *testing.T) {
	id := NewID("lock")
	if !strings.HasPrefix(id, "lock_") {
		t.Fatalf("expected lock_ prefix, got %q", id)
	}
	if len(id) != len("lock_")+32 {
		t.Fatalf("unexpected id length %d", len(id))
	}
	if NewID("lock") == id {
		t.Fatal("expected distinct ids")
	}
}

func TestNewIDWithoutPrefix(t *testing.T) {
	if id := NewID(""); len(id) != 32 || strings.Contains(id, "_") {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestRequestIDLength(t *testing.T) {
	if id := RequestID(); len(id) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", id)
	}
}
