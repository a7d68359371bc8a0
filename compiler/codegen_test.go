package compiler

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/chazu/lamb/vm"
)

// decode returns the instructions of code in order, failing the test on
// malformed output.
func decode(t *testing.T, code []byte) []vm.Instr {
	t.Helper()
	located, err := vm.DecodeAll(code)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	out := make([]vm.Instr, len(located))
	for i, li := range located {
		out[i] = li.Instr
	}
	return out
}

func expectInstrs(t *testing.T, got, want []vm.Instr) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d instructions, want %d\ngot:  %v\nwant: %v", len(got), len(want), got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("instr[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func compileString(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := CompileSource(src)
	if err != nil {
		t.Fatalf("CompileSource(%q): %v", src, err)
	}
	return prog
}

func run(t *testing.T, src string) vm.Value {
	t.Helper()
	prog := compileString(t, src)
	result, err := vm.NewVM(vm.Options{Out: io.Discard}).Run(prog.Code)
	if err != nil {
		t.Fatalf("Run(%q): %v", src, err)
	}
	return result
}

func TestCompileLiteral(t *testing.T) {
	prog := compileString(t, "42")
	expectInstrs(t, decode(t, prog.Code), []vm.Instr{
		vm.Push(vm.Int(42)),
		vm.Pop(),
	})
}

func TestCompileIfLayout(t *testing.T) {
	prog := compileString(t, "(if #t 7 9)")
	expectInstrs(t, decode(t, prog.Code), []vm.Instr{
		vm.Push(vm.Bool(true)),
		vm.JmpIf(19),
		vm.Push(vm.Int(9)),
		vm.Jmp(25),
		vm.Push(vm.Int(7)),
		vm.Pop(),
	})
	if len(prog.Code) != 26 {
		t.Errorf("code length = %d, want 26", len(prog.Code))
	}
}

func TestCompileIfWithoutElsePushesNil(t *testing.T) {
	prog := compileString(t, "(if #f 1)")
	instrs := decode(t, prog.Code)
	if !instrs[2].Equal(vm.Push(vm.Nil)) {
		t.Errorf("else branch = %v, want PUSH nil", instrs[2])
	}
}

func TestCompileDefineAndGlobals(t *testing.T) {
	prog := compileString(t, "(define x 5) x")
	nbuiltins := len(vm.PredefinedNames())

	expectInstrs(t, decode(t, prog.Code), []vm.Instr{
		vm.Push(vm.Int(5)),
		vm.DefGlobal(),
		vm.GetGlobal(nbuiltins),
		vm.Pop(),
	})
	if prog.Globals[nbuiltins] != "x" {
		t.Errorf("Globals[%d] = %q, want x", nbuiltins, prog.Globals[nbuiltins])
	}
	for i, name := range vm.PredefinedNames() {
		if prog.Globals[i] != name {
			t.Errorf("Globals[%d] = %q, want %q", i, prog.Globals[i], name)
		}
	}
}

func TestCompileCallOrder(t *testing.T) {
	prog := compileString(t, "(+ 1 2)")
	expectInstrs(t, decode(t, prog.Code), []vm.Instr{
		vm.Push(vm.Int(1)),
		vm.Push(vm.Int(2)),
		vm.GetGlobal(0),
		vm.Call(2),
		vm.Pop(),
	})
}

func TestCompileCaptureOnce(t *testing.T) {
	prog := compileString(t, "(lambda (x) (lambda (y) (+ x x)))")
	expectInstrs(t, decode(t, prog.Code), []vm.Instr{
		vm.Jmp(50),
		vm.Jmp(31),
		// inner body: y=0, self=1, captured x=2
		vm.Get(2),
		vm.Get(2),
		vm.GetGlobal(0),
		vm.Call(2),
		vm.Return(),
		// back in the outer body: load x for the capture
		vm.Get(0),
		vm.MakeLambda(10, 1, 1),
		vm.Return(),
		vm.MakeLambda(5, 1, 0),
		vm.Pop(),
	})
}

func TestCompileCaptureSharedWithNestedLambda(t *testing.T) {
	// x is read directly and again through the innermost lambda; the middle
	// lambda still captures it once.
	prog := compileString(t, "(lambda (x) (lambda (y) (+ x (lambda (z) x))))")
	expectInstrs(t, decode(t, prog.Code), []vm.Instr{
		vm.Jmp(74),
		vm.Jmp(55),
		// middle body: y=0, self=1, captured x=2
		vm.Get(2),
		vm.Jmp(26),
		// innermost body: z=0, self=1, captured x=2
		vm.Get(2),
		vm.Return(),
		vm.Get(2),
		vm.MakeLambda(20, 1, 1),
		vm.GetGlobal(0),
		vm.Call(2),
		vm.Return(),
		// outer body
		vm.Get(0),
		vm.MakeLambda(10, 1, 1),
		vm.Return(),
		vm.MakeLambda(5, 1, 0),
		vm.Pop(),
	})
}

func TestCompileCaptureThreadsThroughFrames(t *testing.T) {
	prog := compileString(t, "(lambda (a) (lambda (b) (lambda (c) a)))")
	instrs := decode(t, prog.Code)

	var makes []vm.Instr
	var gets []vm.Instr
	for _, in := range instrs {
		switch in.Op {
		case vm.OpMakeLambda:
			makes = append(makes, in)
		case vm.OpGet:
			gets = append(gets, in)
		}
	}
	if len(makes) != 3 {
		t.Fatalf("got %d MAKE_LAMBDA, want 3", len(makes))
	}
	// Innermost first: each inner lambda captures a once.
	if makes[0].Captures != 1 || makes[1].Captures != 1 || makes[2].Captures != 0 {
		t.Errorf("captures = %d, %d, %d; want 1, 1, 0", makes[0].Captures, makes[1].Captures, makes[2].Captures)
	}
	// Body of innermost reads its capture slot (c=0, self=1, a=2), the
	// middle lambda forwards its own capture slot 2, the outer its param 0.
	wantSlots := []int32{2, 2, 0}
	if len(gets) != len(wantSlots) {
		t.Fatalf("got %d GETs, want %d: %v", len(gets), len(wantSlots), gets)
	}
	for i, slot := range wantSlots {
		if gets[i].Index != slot {
			t.Errorf("GET[%d] slot = %d, want %d", i, gets[i].Index, slot)
		}
	}
}

func TestCompileSelfReference(t *testing.T) {
	prog := compileString(t, "(define (f n) (f n))")
	expectInstrs(t, decode(t, prog.Code), []vm.Instr{
		vm.Jmp(21),
		vm.Get(0),
		vm.Get(1),
		vm.Call(1),
		vm.Return(),
		vm.MakeLambda(5, 1, 0),
		vm.DefGlobal(),
	})
}

func TestCompileLocalShadowsGlobal(t *testing.T) {
	prog := compileString(t, "(lambda (+) +)")
	instrs := decode(t, prog.Code)
	if !instrs[1].Equal(vm.Get(0)) {
		t.Errorf("body = %v, want GET 0", instrs[1])
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		src  string
		want error
	}{
		{"undefined", ErrUndefined},
		{"(lambda (x) y)", ErrUndefined},
		{"(define x 1) (define x 2)", ErrRedefined},
		{"(define display 1)", ErrRedefined},
		{"(lambda () (define x 1))", ErrDefineNotTopLevel},
		{"(if #t (define x 1) 2)", ErrDefineNotTopLevel},
		{"(lambda (a b a) a)", ErrDuplicateParam},
		{"(define (f) (g)) (define (g) 1)", ErrUndefined},
	}

	for _, tt := range tests {
		_, err := CompileSource(tt.src)
		if !errors.Is(err, tt.want) {
			t.Errorf("CompileSource(%q) error = %v, want %v", tt.src, err, tt.want)
		}
	}
}

func TestCompileErrorPosition(t *testing.T) {
	_, err := CompileSource("(define x 1)\n(+ x zz)")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error %v is not *Error", err)
	}
	if cerr.Pos.Line != 2 || cerr.Pos.Column != 6 {
		t.Errorf("position = %d:%d, want 2:6", cerr.Pos.Line, cerr.Pos.Column)
	}
	if !strings.Contains(cerr.Error(), "zz") {
		t.Errorf("message %q does not name the identifier", cerr.Error())
	}
}

func TestRedefinitionEmitsNothing(t *testing.T) {
	c := NewCompiler()
	first, err := c.CompileSource("(define x 1)")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.CompileSource("(define x (lambda () 2))"); !errors.Is(err, ErrRedefined) {
		t.Fatalf("expected ErrRedefined, got %v", err)
	}

	next, err := c.CompileSource("x")
	if err != nil {
		t.Fatal(err)
	}
	if next.Start != len(first.Code) {
		t.Errorf("Start = %d, want %d", next.Start, len(first.Code))
	}
}

func TestCompileRollback(t *testing.T) {
	c := NewCompiler()
	before := len(c.Globals())

	if _, err := c.CompileSource("(define y 2) (define z 3) (nope)"); !errors.Is(err, ErrUndefined) {
		t.Fatalf("expected ErrUndefined, got %v", err)
	}
	if len(c.Globals()) != before {
		t.Errorf("globals grew to %d after failed batch, want %d", len(c.Globals()), before)
	}

	prog, err := c.CompileSource("(define y 7) y")
	if err != nil {
		t.Fatalf("y should be definable after rollback: %v", err)
	}
	if prog.Start != 0 {
		t.Errorf("Start = %d, want 0", prog.Start)
	}
}

func TestIncrementalCompileRuns(t *testing.T) {
	c := NewCompiler()
	machine := vm.NewVM(vm.Options{Out: io.Discard})

	batches := []struct {
		src  string
		want vm.Value
	}{
		{"(define (adder n) (lambda (x) (+ x n)))", vm.Nil},
		{"(define inc (adder 1))", vm.Nil},
		{"(inc 41)", vm.Int(42)},
		{"((adder 10) (inc 0))", vm.Int(11)},
	}
	for _, b := range batches {
		prog, err := c.CompileSource(b.src)
		if err != nil {
			t.Fatalf("compile %q: %v", b.src, err)
		}
		got, err := machine.RunFrom(prog.Code, prog.Start)
		if err != nil {
			t.Fatalf("run %q: %v", b.src, err)
		}
		if got != b.want {
			t.Errorf("%q = %v, want %v", b.src, got, b.want)
		}
	}
}

func TestCompileAndRun(t *testing.T) {
	tests := []struct {
		src  string
		want vm.Value
	}{
		{"42", vm.Int(42)},
		{"(+ 1 2)", vm.Int(3)},
		{"(* (- 10 4) 7)", vm.Int(42)},
		{"(< 3 2)", vm.Bool(false)},
		{"(if #t 7 9)", vm.Int(7)},
		{"(if (= 1 2) 7 9)", vm.Int(9)},
		{"(if #f 7)", vm.Nil},
		{"nil", vm.Nil},
		{"(isnil nil)", vm.Bool(true)},
		{"(define (sum n) (if (= n 0) 0 (+ n (sum (- n 1))))) (sum 3)", vm.Int(6)},
		{"(define (sum n) (if (= n 0) 0 (+ n (sum (- n 1))))) (sum 100)", vm.Int(5050)},
		{"((lambda (x y) (- x y)) 10 3)", vm.Int(7)},
		{"(define (k a) (lambda (b) a)) ((k 1) 2)", vm.Int(1)},
		{"(define (f a) (lambda (b) (lambda (c) (+ a (+ b c))))) (((f 1) 2) 3)", vm.Int(6)},
		{"(define (fib n) (if (< n 2) n (+ (fib (- n 1)) (fib (- n 2))))) (fib 15)", vm.Int(610)},
		{"(define twice (lambda (f) (lambda (x) (f (f x))))) ((twice (lambda (n) (* n 3))) 2)", vm.Int(18)},
	}

	for _, tt := range tests {
		if got := run(t, tt.src); got != tt.want {
			t.Errorf("%q = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestProgramString(t *testing.T) {
	prog := compileString(t, "(display 1)")
	listing := prog.String()
	if !strings.Contains(listing, "GET_GLOBAL 5  ; display") {
		t.Errorf("listing missing annotated display:\n%s", listing)
	}
}

// TestCompiledInstrRoundTrip re-encodes every instruction the compiler
// emits and checks it reproduces the original bytes, and that every jump
// stays inside the stream.
func TestCompiledInstrRoundTrip(t *testing.T) {
	srcs := []string{
		"(if #t 7 9)",
		"(define (sum n) (if (= n 0) 0 (+ n (sum (- n 1))))) (sum 3)",
		"(lambda (x) (lambda (y) (+ x (lambda (z) x))))",
		"(define (f a) (lambda (b) (lambda (c) (+ a (+ b c))))) (display (((f 1) 2) 3))",
	}
	for _, src := range srcs {
		prog := compileString(t, src)
		located, err := vm.DecodeAll(prog.Code)
		if err != nil {
			t.Fatalf("%q: %v", src, err)
		}
		for _, li := range located {
			enc, n := vm.AppendInstr(nil, li.Instr)
			if n != li.Size || !bytes.Equal(enc, prog.Code[li.Offset:li.Offset+li.Size]) {
				t.Errorf("%q: %s at %d does not round trip", src, li.Instr, li.Offset)
			}
			if li.Instr.Op.IsJump() || li.Instr.Op == vm.OpMakeLambda {
				if li.Instr.Target < 0 || int(li.Instr.Target) > len(prog.Code) {
					t.Errorf("%q: %s targets outside the stream", src, li.Instr)
				}
			}
		}
	}
}

func TestCompiledArityMismatch(t *testing.T) {
	for _, src := range []string{"((lambda (a b) a) 1)", "((lambda (a b) a) 1 2 3)"} {
		prog := compileString(t, src)
		_, err := vm.NewVM(vm.Options{Out: io.Discard}).Run(prog.Code)
		if !errors.Is(err, vm.ErrArity) {
			t.Errorf("%q: err = %v, want ErrArity", src, err)
		}
	}
}

// TestCompiledGCSafety collects with only some closures reachable from the
// global table. Unreachable handles must go stale; reachable ones keep their
// captures byte for byte.
func TestCompiledGCSafety(t *testing.T) {
	prog := compileString(t, "(define (adder x) (lambda (y) (+ x y))) (define keep (adder 1)) (adder 2) (adder 3) 0")
	machine := vm.NewVM(vm.Options{Out: io.Discard})
	if _, err := machine.Run(prog.Code); err != nil {
		t.Fatal(err)
	}

	adder := machine.Globals()[9].(vm.ClosureRef)
	keep := machine.Globals()[10].(vm.ClosureRef)
	encodeCaptures := func(handle uint32) []byte {
		c, err := machine.Heap().Get(handle)
		if err != nil {
			t.Fatalf("Get(%d): %v", handle, err)
		}
		var buf []byte
		for _, v := range c.Captures {
			buf = vm.AppendValue(buf, v)
		}
		return buf
	}
	before := encodeCaptures(keep.Handle)
	handles := machine.Heap().Handles()
	if len(handles) != 4 {
		t.Fatalf("%d closures before collection, want 4", len(handles))
	}

	machine.Collect()

	for _, h := range handles {
		_, err := machine.Heap().Get(h)
		live := h == adder.Handle || h == keep.Handle
		if live && err != nil {
			t.Errorf("reachable closure %d collected: %v", h, err)
		}
		if !live && !errors.Is(err, vm.ErrBadHandle) {
			t.Errorf("unreachable closure %d still live", h)
		}
	}
	if after := encodeCaptures(keep.Handle); !bytes.Equal(before, after) {
		t.Errorf("captures changed across collection: % X -> % X", before, after)
	}
}
