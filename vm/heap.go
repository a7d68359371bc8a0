package vm

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Heap: arena of closures addressed by integer handles
// ---------------------------------------------------------------------------

// Closure is a heap-resident function value: an entry point plus the values
// it captured when it was created.
type Closure struct {
	Arity    uint32
	Captures []Value
	EntryPC  uint32
}

// closureOverhead is the fixed footprint charged per closure: arity, entry
// pc, capture count and handle, four bytes each.
const closureOverhead = 16

// DefaultGCThreshold is the heap footprint above which the VM collects.
const DefaultGCThreshold = 64 * 1024

// Heap owns every closure created by a VM. Handles are never reused, so a
// stale ClosureRef fails with ErrBadHandle instead of aliasing a new object.
type Heap struct {
	objects   map[uint32]*Closure
	next      uint32
	size      int
	threshold int

	cycles    uint64
	lastStats *GCStats
}

// NewHeap creates an empty heap that asks for collection once its footprint
// exceeds threshold bytes. A non-positive threshold selects the default.
func NewHeap(threshold int) *Heap {
	if threshold <= 0 {
		threshold = DefaultGCThreshold
	}
	return &Heap{
		objects:   make(map[uint32]*Closure),
		next:      1,
		threshold: threshold,
	}
}

// Alloc stores c and returns its handle.
func (h *Heap) Alloc(c *Closure) uint32 {
	handle := h.next
	h.next++
	h.objects[handle] = c
	h.size += footprint(c)
	return handle
}

// Get returns the closure for handle. An unknown handle means the bytecode
// or the VM is broken.
func (h *Heap) Get(handle uint32) (*Closure, error) {
	c, ok := h.objects[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBadHandle, handle)
	}
	return c, nil
}

// Size returns the running footprint of all live closures.
func (h *Heap) Size() int {
	return h.size
}

// Len returns the number of live closures.
func (h *Heap) Len() int {
	return len(h.objects)
}

// Threshold returns the collection threshold in bytes.
func (h *Heap) Threshold() int {
	return h.threshold
}

// NeedsCollection reports whether the footprint exceeds the threshold.
func (h *Heap) NeedsCollection() bool {
	return h.size > h.threshold
}

// Handles returns the live handles in ascending order.
func (h *Heap) Handles() []uint32 {
	handles := make([]uint32, 0, len(h.objects))
	for handle := range h.objects {
		handles = append(handles, handle)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

// footprint is the accounting size of a closure.
func footprint(c *Closure) int {
	n := closureOverhead
	for _, v := range c.Captures {
		n += valueFootprint(v)
	}
	return n
}

func valueFootprint(v Value) int {
	switch x := v.(type) {
	case ClosureRef:
		return 9 // tag + handle + arity
	case BuiltinRef:
		return 5 + len(x.Name)
	default:
		return EncodedSize(v)
	}
}
