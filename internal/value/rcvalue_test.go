package value

import "testing"

// TestRcValueCopyOnWrite exercises the copy-on-write contract Set/Clone/
// Unique document: cloning shares the cell and bumps the ref count, and a
// Set against a shared cell detaches into a fresh one rather than
// mutating what an alias still observes (spec.md §3/§5).
func TestRcValueCopyOnWrite(t *testing.T) {
	r1 := NewRcValue(Int(1))
	if !r1.Unique() {
		t.Fatal("a freshly constructed RcValue must be unique")
	}

	r2 := r1.Clone()
	if r1.Unique() || r2.Unique() {
		t.Fatal("both aliases must report non-unique after Clone")
	}
	if !Equal(r1.Get(), r2.Get()) {
		t.Fatal("clone must observe the same value before either is mutated")
	}

	r2.Set(Int(2))
	if !Equal(r1.Get(), Int(1)) {
		t.Errorf("r1 must keep seeing the old value after r2.Set, got %s", Repr(r1.Get()))
	}
	if !Equal(r2.Get(), Int(2)) {
		t.Errorf("r2 must observe its own write, got %s", Repr(r2.Get()))
	}
	if !r1.Unique() {
		t.Error("r1 should be the sole remaining owner of the original cell after r2 detached")
	}
	if !r2.Unique() {
		t.Error("r2 should be the sole owner of its freshly detached cell")
	}

	r1.Set(Int(5))
	if !Equal(r1.Get(), Int(5)) {
		t.Errorf("Set on a unique cell mutates in place, got %s", Repr(r1.Get()))
	}
}

// TestRcValueRelease checks Release drops one alias's claim so the
// remaining alias becomes unique again.
func TestRcValueRelease(t *testing.T) {
	r1 := NewRcValue(Int(10))
	r2 := r1.Clone()
	if r1.Unique() {
		t.Fatal("expected non-unique while r2 is still alive")
	}
	r2.Release()
	if !r1.Unique() {
		t.Error("r1 should be unique again once r2 releases its claim")
	}
}
