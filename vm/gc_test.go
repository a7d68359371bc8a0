package vm

import (
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// Heap accounting
// ---------------------------------------------------------------------------

func TestHeapAllocAndGet(t *testing.T) {
	h := NewHeap(0)
	if h.Threshold() != DefaultGCThreshold {
		t.Errorf("Threshold() = %d, want default %d", h.Threshold(), DefaultGCThreshold)
	}

	c := &Closure{Arity: 1, EntryPC: 5, Captures: []Value{Int(9)}}
	handle := h.Alloc(c)
	got, err := h.Get(handle)
	if err != nil {
		t.Fatal(err)
	}
	if got != c {
		t.Error("Get returned a different closure")
	}
	if h.Size() != closureOverhead+5 {
		t.Errorf("Size() = %d, want %d", h.Size(), closureOverhead+5)
	}
	if _, err := h.Get(handle + 1); !errors.Is(err, ErrBadHandle) {
		t.Errorf("Get(unknown) err = %v, want ErrBadHandle", err)
	}
}

func TestHeapNeedsCollection(t *testing.T) {
	h := NewHeap(closureOverhead)
	h.Alloc(&Closure{})
	if h.NeedsCollection() {
		t.Error("heap exactly at threshold should not need collection")
	}
	h.Alloc(&Closure{})
	if !h.NeedsCollection() {
		t.Error("heap above threshold should need collection")
	}
}

// ---------------------------------------------------------------------------
// Mark-sweep
// ---------------------------------------------------------------------------

// TestCollectFollowsCaptures checks that a closure reachable only through
// another closure's captures survives collection.
func TestCollectFollowsCaptures(t *testing.T) {
	h := NewHeap(0)
	inner := h.Alloc(&Closure{})
	outer := h.Alloc(&Closure{Captures: []Value{ClosureRef{Handle: inner}}})
	garbage := h.Alloc(&Closure{Captures: []Value{Int(1), Bool(true)}})

	stats := h.Collect([]Value{Int(3), ClosureRef{Handle: outer}})
	if stats.Marked != 2 || stats.Swept != 1 {
		t.Errorf("marked %d swept %d, want 2 and 1", stats.Marked, stats.Swept)
	}
	if stats.FreedBytes != closureOverhead+5+2 {
		t.Errorf("freed %d bytes, want %d", stats.FreedBytes, closureOverhead+7)
	}
	if _, err := h.Get(inner); err != nil {
		t.Errorf("inner closure collected: %v", err)
	}
	if _, err := h.Get(garbage); !errors.Is(err, ErrBadHandle) {
		t.Errorf("garbage closure still live")
	}
	if stats.SizeAfter != h.Size() || h.Size() != closureOverhead+(closureOverhead+9) {
		t.Errorf("size after = %d, heap size %d", stats.SizeAfter, h.Size())
	}
	if h.Cycles() != 1 || h.LastStats() != stats {
		t.Errorf("cycles = %d, last stats not recorded", h.Cycles())
	}
}

func TestCollectCycles(t *testing.T) {
	h := NewHeap(0)
	a := &Closure{}
	b := &Closure{}
	ha := h.Alloc(a)
	hb := h.Alloc(b)
	a.Captures = []Value{ClosureRef{Handle: hb}}
	b.Captures = []Value{ClosureRef{Handle: ha}}

	if stats := h.Collect([]Value{ClosureRef{Handle: ha}}); stats.Swept != 0 {
		t.Errorf("rooted cycle swept %d closures", stats.Swept)
	}
	if stats := h.Collect(nil); stats.Swept != 2 {
		t.Errorf("unrooted cycle swept %d closures, want 2", stats.Swept)
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d after collecting everything", h.Len())
	}
}

func TestCollectIgnoresDanglingRoot(t *testing.T) {
	h := NewHeap(0)
	live := h.Alloc(&Closure{})
	stats := h.Collect([]Value{ClosureRef{Handle: 999}, ClosureRef{Handle: live}})
	if stats.Marked != 1 || stats.Swept != 0 {
		t.Errorf("marked %d swept %d", stats.Marked, stats.Swept)
	}
}

func TestHandlesNotReused(t *testing.T) {
	h := NewHeap(0)
	first := h.Alloc(&Closure{})
	h.Collect(nil)
	second := h.Alloc(&Closure{})
	if second == first {
		t.Fatalf("handle %d reused after collection", first)
	}
	if _, err := h.Get(first); !errors.Is(err, ErrBadHandle) {
		t.Errorf("stale handle resolved: %v", err)
	}
	if got := h.Handles(); len(got) != 1 || got[0] != second {
		t.Errorf("Handles() = %v, want [%d]", got, second)
	}
}
