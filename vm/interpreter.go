package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Execution loop
// ---------------------------------------------------------------------------

// run is the fetch-decode-execute loop. It stops at the end of the stream or
// on the first fault.
func (vm *VM) run() (Value, error) {
	for vm.pc < len(vm.code) {
		if vm.heap.NeedsCollection() {
			vm.Collect()
		}

		pc := vm.pc
		in, n, err := ReadInstr(vm.code, pc)
		if err != nil {
			return nil, err
		}
		if vm.opts.Trace {
			fmt.Fprintf(vm.opts.Out, "[%04d] %-40s sp=%d fp=%d\n", pc, in, len(vm.stack), len(vm.frames))
		}
		vm.pc = pc + n

		if err := vm.step(in); err != nil {
			return nil, &RuntimeError{PC: pc, Op: in.Op, Err: err}
		}
	}

	if len(vm.stack) > 0 {
		return vm.stack[len(vm.stack)-1], nil
	}
	return vm.result, nil
}

func (vm *VM) step(in Instr) error {
	switch in.Op {
	case OpPush:
		return vm.push(in.Value)

	case OpPop:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if len(vm.frames) == 0 {
			vm.result = v
		}
		return nil

	case OpGet:
		if len(vm.frames) == 0 {
			return fmt.Errorf("%w: slot %d outside of any call", ErrBadLocal, in.Index)
		}
		f := &vm.frames[len(vm.frames)-1]
		if in.Index < 0 || int(in.Index) >= f.nlocals {
			return fmt.Errorf("%w: slot %d, frame has %d", ErrBadLocal, in.Index, f.nlocals)
		}
		return vm.push(vm.stack[f.bp+int(in.Index)])

	case OpDefGlobal:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.globals = append(vm.globals, v)
		return nil

	case OpGetGlobal:
		if in.Index < 0 || int(in.Index) >= len(vm.globals) {
			return fmt.Errorf("%w: slot %d, %d defined", ErrBadGlobal, in.Index, len(vm.globals))
		}
		return vm.push(vm.globals[in.Index])

	case OpJmp:
		if err := vm.checkTarget(in.Target); err != nil {
			return err
		}
		vm.pc = int(in.Target)
		return nil

	case OpJmpIf:
		if err := vm.checkTarget(in.Target); err != nil {
			return err
		}
		v, err := vm.pop()
		if err != nil {
			return err
		}
		cond, ok := v.(Bool)
		if !ok {
			return fmt.Errorf("%w: condition is %s, not bool", ErrType, v.Tag())
		}
		if cond {
			vm.pc = int(in.Target)
		}
		return nil

	case OpCall:
		return vm.call(int(in.Arity))

	case OpReturn:
		return vm.ret()

	case OpMakeLambda:
		return vm.makeLambda(in)

	default:
		return fmt.Errorf("%w: unhandled opcode %s", ErrMalformed, in.Op)
	}
}

// call pops the callee and argc arguments and either runs a builtin or
// enters a closure.
func (vm *VM) call(argc int) error {
	callee, err := vm.pop()
	if err != nil {
		return err
	}
	if argc < 0 || argc > len(vm.stack) {
		return fmt.Errorf("%w: call needs %d arguments, stack has %d", ErrStackUnderflow, argc, len(vm.stack))
	}

	switch fn := callee.(type) {
	case BuiltinRef:
		base := len(vm.stack) - argc
		args := make([]Value, argc)
		copy(args, vm.stack[base:])
		vm.stack = vm.stack[:base]
		result, err := CallBuiltin(fn, vm.opts.Out, args)
		if err != nil {
			return err
		}
		return vm.push(result)

	case ClosureRef:
		c, err := vm.heap.Get(fn.Handle)
		if err != nil {
			return err
		}
		if int(c.Arity) != argc {
			return fmt.Errorf("%w: closure #%d expects %d arguments, got %d", ErrArity, fn.Handle, c.Arity, argc)
		}
		if err := vm.checkTarget(int32(c.EntryPC)); err != nil {
			return err
		}
		// Arguments already sit in slots 0..argc-1; add self then captures.
		bp := len(vm.stack) - argc
		if err := vm.push(fn); err != nil {
			return err
		}
		for _, v := range c.Captures {
			if err := vm.push(v); err != nil {
				return err
			}
		}
		vm.frames = append(vm.frames, frame{
			returnPC: vm.pc,
			bp:       bp,
			nlocals:  argc + 1 + len(c.Captures),
			closure:  fn.Handle,
		})
		vm.pc = int(c.EntryPC)
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrNotCallable, callee)
	}
}

// ret leaves the current frame, discarding its locals and anything above
// them, and hands the result to the caller.
func (vm *VM) ret() error {
	if len(vm.frames) == 0 {
		return ErrBadReturn
	}
	result, err := vm.pop()
	if err != nil {
		return err
	}
	f := vm.frames[len(vm.frames)-1]
	if len(vm.stack) < f.bp {
		return fmt.Errorf("%w: frame base %d above stack top %d", ErrStackUnderflow, f.bp, len(vm.stack))
	}
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.stack = vm.stack[:f.bp]
	vm.pc = f.returnPC
	return vm.push(result)
}

// makeLambda pops the pre-pushed captures, in push order, into a new heap
// closure.
func (vm *VM) makeLambda(in Instr) error {
	n := int(in.Captures)
	if n < 0 || n > len(vm.stack) {
		return fmt.Errorf("%w: lambda needs %d captures, stack has %d", ErrStackUnderflow, n, len(vm.stack))
	}
	if in.Arity < 0 {
		return fmt.Errorf("%w: negative arity %d", ErrArity, in.Arity)
	}
	if err := vm.checkTarget(in.Target); err != nil {
		return err
	}
	base := len(vm.stack) - n
	captures := make([]Value, n)
	copy(captures, vm.stack[base:])
	vm.stack = vm.stack[:base]

	handle := vm.heap.Alloc(&Closure{
		Arity:    uint32(in.Arity),
		Captures: captures,
		EntryPC:  uint32(in.Target),
	})
	return vm.push(ClosureRef{Handle: handle, Arity: int(in.Arity)})
}

// ---------------------------------------------------------------------------
// Stack helpers
// ---------------------------------------------------------------------------

func (vm *VM) push(v Value) error {
	if len(vm.stack) >= vm.opts.StackLimit {
		return fmt.Errorf("%w: limit %d", ErrStackOverflow, vm.opts.StackLimit)
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() (Value, error) {
	if len(vm.stack) == 0 {
		return nil, ErrStackUnderflow
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack[len(vm.stack)-1] = nil
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) checkTarget(target int32) error {
	if target < 0 || int(target) > len(vm.code) {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrBadJump, target, len(vm.code))
	}
	return nil
}
