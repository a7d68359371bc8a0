package compiler

// ---------------------------------------------------------------------------
// Lexical frames and capture propagation
// ---------------------------------------------------------------------------

// capture records that a frame copies a value out of its parent frame when
// the closure is built.
type capture struct {
	name       string
	parentSlot int // slot of the name in the enclosing frame
	slot       int // slot of the alias in this frame
}

// frame holds the local bindings of one lambda while its body is compiled.
//
// Slot layout matches the VM's call frame: parameters 0..n-1, then the
// lambda itself at n, then captures in discovery order. Slots are never
// reused.
type frame struct {
	params   map[string]int
	self     string // lambda name, "" when anonymous
	selfSlot int
	captures []capture
	byName   map[string]int // capture name -> index into captures
	next     int            // next free slot
}

func newFrame(name string, params []string) (*frame, bool) {
	f := &frame{
		params: make(map[string]int, len(params)),
		self:   name,
		byName: make(map[string]int),
	}
	for i, p := range params {
		if _, dup := f.params[p]; dup {
			return nil, false
		}
		f.params[p] = i
	}
	f.selfSlot = len(params)
	f.next = len(params) + 1
	return f, true
}

// local resolves name against bindings owned by this frame.
func (f *frame) local(name string) (int, bool) {
	if slot, ok := f.params[name]; ok {
		return slot, true
	}
	if f.self != "" && name == f.self {
		return f.selfSlot, true
	}
	if i, ok := f.byName[name]; ok {
		return f.captures[i].slot, true
	}
	return 0, false
}

// addCapture gives name a slot in this frame backed by parentSlot in the
// enclosing frame. Capturing the same name twice returns the first slot.
func (f *frame) addCapture(name string, parentSlot int) int {
	if i, ok := f.byName[name]; ok {
		return f.captures[i].slot
	}
	slot := f.next
	f.next++
	f.byName[name] = len(f.captures)
	f.captures = append(f.captures, capture{name: name, parentSlot: parentSlot, slot: slot})
	return slot
}

// resolveLocal looks name up from the innermost frame outward. A hit in an
// enclosing frame is threaded through every frame between it and the
// innermost one, so each intermediate closure captures the value once and
// passes it down. The returned slot belongs to the innermost frame.
func (c *Compiler) resolveLocal(name string) (int, bool) {
	for k := len(c.frames) - 1; k >= 0; k-- {
		slot, ok := c.frames[k].local(name)
		if !ok {
			continue
		}
		for j := k + 1; j < len(c.frames); j++ {
			slot = c.frames[j].addCapture(name, slot)
		}
		return slot, true
	}
	return 0, false
}
