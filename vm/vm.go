package vm

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VM: the Lamb virtual machine
// ---------------------------------------------------------------------------

var log = commonlog.GetLogger("lamb.vm")

// DefaultStackLimit bounds the value stack, in values.
const DefaultStackLimit = 1 << 16

// Options configures a VM.
type Options struct {
	GCThreshold int       // heap footprint that triggers collection (bytes)
	StackLimit  int       // maximum number of values on the stack
	Out         io.Writer // destination for display and trace output
	Trace       bool      // print every executed instruction to Out
}

// VM executes Lamb bytecode. It is single-threaded: one goroutine owns the
// stack, the heap and the global table for the VM's whole life.
type VM struct {
	ID uuid.UUID

	opts    Options
	globals []Value
	heap    *Heap

	// Execution state
	code   []byte
	pc     int
	stack  []Value
	frames []frame
	result Value
}

// frame is the run-time window of one closure invocation. Slots bp..bp+n-1
// hold the arguments, the closure itself, then its captures.
type frame struct {
	returnPC int
	bp       int
	nlocals  int
	closure  uint32
}

// NewVM creates a VM whose global table holds the predefined builtins.
func NewVM(opts Options) *VM {
	if opts.StackLimit <= 0 {
		opts.StackLimit = DefaultStackLimit
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	vm := &VM{
		ID:      uuid.New(),
		opts:    opts,
		globals: PredefinedValues(),
		heap:    NewHeap(opts.GCThreshold),
		stack:   make([]Value, 0, 256),
	}
	log.Debugf("vm %s: created (gc threshold %d, stack limit %d)", vm.ID, vm.heap.Threshold(), opts.StackLimit)
	return vm
}

// Heap returns the VM's heap.
func (vm *VM) Heap() *Heap {
	return vm.heap
}

// Globals returns the global table. The slice is owned by the VM.
func (vm *VM) Globals() []Value {
	return vm.globals
}

// TruncateGlobals drops every global at slot n or above. Predefined slots
// are never dropped.
func (vm *VM) TruncateGlobals(n int) {
	if predefined := len(Builtins) + 1; n < predefined {
		n = predefined
	}
	if n >= len(vm.globals) {
		return
	}
	clear(vm.globals[n:])
	vm.globals = vm.globals[:n]
}

// Stack returns the live value stack. The slice is owned by the VM.
func (vm *VM) Stack() []Value {
	return vm.stack
}

// Run executes code from offset 0.
func (vm *VM) Run(code []byte) (Value, error) {
	return vm.RunFrom(code, 0)
}

// RunFrom executes code starting at offset start. Globals and the heap carry
// over between runs, so an append-only stream can be executed batch by
// batch.
//
// The result is the value left on top of the stack or, when the stack is
// empty, the value of the last top-level expression.
func (vm *VM) RunFrom(code []byte, start int) (Value, error) {
	vm.code = code
	vm.pc = start
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.result = Nil

	log.Debugf("vm %s: run from %d (%d bytes)", vm.ID, start, len(code))
	if start < 0 || start > len(code) {
		return nil, &RuntimeError{PC: start, Err: ErrBadJump}
	}
	result, err := vm.run()
	if err != nil {
		log.Debugf("vm %s: halted: %v", vm.ID, err)
		return nil, err
	}
	return result, nil
}

// Collect forces a collection rooted at the stack, the globals and the last
// top-level result.
func (vm *VM) Collect() *GCStats {
	roots := make([]Value, 0, len(vm.stack)+len(vm.globals)+1)
	roots = append(roots, vm.stack...)
	roots = append(roots, vm.globals...)
	if vm.result != nil {
		roots = append(roots, vm.result)
	}
	stats := vm.heap.Collect(roots)
	log.Debugf("vm %s: gc #%d marked %d swept %d freed %d bytes in %s",
		vm.ID, vm.heap.Cycles(), stats.Marked, stats.Swept, stats.FreedBytes, stats.Duration)
	return stats
}
