package testfixtures

import (
	"testing"

	"github.com/google/uuid"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator("alloc")
	if first, second := gen.Next(), gen.Next(); first != "alloc-1" || second != "alloc-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}

	gen.Reset()
	if next := gen.Next(); next != "alloc-1" {
		t.Fatalf("expected alloc-1 after reset, got %q", next)
	}
}

func TestIDGeneratorUUIDsAreStable(t *testing.T) {
	t.Parallel()

	a := NewIDGenerator("job").UUIDFunc()
	b := NewIDGenerator("job").UUIDFunc()

	first := a()
	if _, err := uuid.Parse(first); err != nil {
		t.Fatalf("generated id is not a UUID: %q", first)
	}
	if first != b() {
		t.Fatalf("expected equal sequences to give equal UUIDs")
	}
	if first == a() {
		t.Fatalf("expected distinct UUIDs within a sequence")
	}
}
