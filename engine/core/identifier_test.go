package core

import "testing"

func TestIdentifierPoolNeverReusesIDs(t *testing.T) {
	p := NewIdentifierPool(4)

	first := p.Acquire("a")
	if first == InvalidID {
		t.Fatalf("acquired the invalid id")
	}
	if err := p.Release(first); err != nil {
		t.Fatalf("release: %v", err)
	}
	second := p.Acquire("b")
	if second == first {
		t.Fatalf("slot reuse produced the same id %#x", second)
	}
	if _, ok := p.Lookup(first); ok {
		t.Fatalf("stale id still resolves")
	}
	owner, ok := p.Lookup(second)
	if !ok || owner != "b" {
		t.Fatalf("Lookup(second) = %v, %v", owner, ok)
	}
}

func TestIdentifierPoolReleaseErrors(t *testing.T) {
	p := NewIdentifierPool(1)
	id := p.Acquire(nil)

	if err := p.Release(id + 100); err == nil {
		t.Fatalf("expected out of range error")
	}
	if err := p.Release(id); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := p.Release(id); err == nil {
		t.Fatalf("double release should fail")
	}
	if p.Len() != 0 {
		t.Fatalf("Len = %d, want 0", p.Len())
	}
}
