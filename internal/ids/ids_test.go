package ids

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

func TestNewSessionIDIsRandomUUID(t *testing.T) {
	id := NewSessionID()
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("uuid.Parse(%q): %v", id, err)
	}
	if parsed.Version() != 4 {
		t.Fatalf("expected v4, got %d", parsed.Version())
	}
	if NewSessionID() == id {
		t.Fatal("expected distinct ids")
	}
}

func TestNewIsSortableULID(t *testing.T) {
	a := New()
	b := New()
	if _, err := ulid.ParseStrict(a); err != nil {
		t.Fatalf("ParseStrict(%q): %v", a, err)
	}
	if a >= b {
		t.Fatalf("expected monotonic ids, got %s then %s", a, b)
	}
}
