package vm

import (
	"time"
)

// ---------------------------------------------------------------------------
// Mark-sweep collection
// ---------------------------------------------------------------------------

// GCStats holds statistics from a single collection.
type GCStats struct {
	Roots      int
	Marked     int
	Swept      int
	FreedBytes int
	SizeAfter  int
	Duration   time.Duration
	Timestamp  time.Time
}

// Collect reclaims every closure not reachable from roots.
//
// Marking walks an explicit worklist seeded from a copy of roots, following
// each closure's captures. Nothing is freed until marking has finished, so a
// closure reachable only through another closure's captures survives.
func (h *Heap) Collect(roots []Value) *GCStats {
	start := time.Now()

	work := make([]uint32, 0, len(roots))
	for _, v := range roots {
		if ref, ok := v.(ClosureRef); ok {
			work = append(work, ref.Handle)
		}
	}

	marked := make(map[uint32]struct{}, len(h.objects))
	for len(work) > 0 {
		handle := work[len(work)-1]
		work = work[:len(work)-1]
		if _, seen := marked[handle]; seen {
			continue
		}
		c, ok := h.objects[handle]
		if !ok {
			// Dangling root; Get reports it when the VM actually uses it.
			continue
		}
		marked[handle] = struct{}{}
		for _, v := range c.Captures {
			if ref, ok := v.(ClosureRef); ok {
				work = append(work, ref.Handle)
			}
		}
	}

	stats := &GCStats{
		Roots:     len(roots),
		Marked:    len(marked),
		Timestamp: start,
	}
	for handle, c := range h.objects {
		if _, live := marked[handle]; live {
			continue
		}
		n := footprint(c)
		h.size -= n
		stats.FreedBytes += n
		stats.Swept++
		delete(h.objects, handle)
	}
	stats.SizeAfter = h.size
	stats.Duration = time.Since(start)

	h.cycles++
	h.lastStats = stats
	return stats
}

// Cycles returns the number of collections performed.
func (h *Heap) Cycles() uint64 {
	return h.cycles
}

// LastStats returns statistics from the most recent collection, or nil if
// none has run.
func (h *Heap) LastStats() *GCStats {
	return h.lastStats
}
