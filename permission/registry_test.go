package permission

import "testing"

func TestRegistryAssignsStableBits(t *testing.T) {
	r := NewRegistry()

	a, err := r.Register("application:read:own")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	b, err := r.Register("application:read:all")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	again, err := r.Register("application:read:own")
	if err != nil {
		t.Fatalf("Register duplicate: %v", err)
	}
	if a != 0 || b != 1 || again != a {
		t.Fatalf("unexpected bits a=%d b=%d again=%d", a, b, again)
	}
	if name, ok := r.Name(b); !ok || name != "application:read:all" {
		t.Fatalf("Name(%d) = %q, %v", b, name, ok)
	}
	if r.Count() != 2 {
		t.Fatalf("Count = %d", r.Count())
	}
}

func TestRegistryFreezeAndLimit(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < maxPermissions; i++ {
		if _, err := r.Register("p" + string(rune('a'+i%26)) + ":x" + string(rune('a'+i/26))); err != nil {
			t.Fatalf("Register %d: %v", i, err)
		}
	}
	if _, err := r.Register("overflow:x"); err == nil {
		t.Fatal("expected limit error")
	}

	r2 := NewRegistry()
	r2.Freeze()
	if _, err := r2.Register("late:x"); err == nil {
		t.Fatal("expected frozen error")
	}
}

func TestMask64(t *testing.T) {
	var m Mask64
	m.Set(0)
	m.Set(5)
	m.Set(63)
	m.Set(64)

	if !m.Has(5) || !m.Has(63) || m.Has(4) || m.Has(64) || m.Has(-1) {
		t.Fatalf("unexpected mask contents %064b", m.Raw())
	}
	if got := m.Bits(); len(got) != 3 || got[0] != 0 || got[1] != 5 || got[2] != 63 {
		t.Fatalf("Bits = %v", got)
	}
	m.Clear(5)
	if m.Has(5) || m.Count() != 2 {
		t.Fatalf("Clear failed: %064b", m.Raw())
	}
}
