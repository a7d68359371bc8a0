// Package interp evaluates Lamb ASTs directly, without compiling them.
//
// It shares the builtin table with the VM and is used as a reference
// evaluator: for any program that does not fail, Eval and running the
// compiled code produce the same value. The one deliberate difference is
// assert, which here reports a failure and keeps going.
package interp

import (
	"fmt"
	"io"

	"github.com/chazu/lamb/compiler"
	"github.com/chazu/lamb/vm"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("lamb.interp")

// DefaultMaxDepth bounds nested closure calls.
const DefaultMaxDepth = 10000

// minCollect is the closure count below which Eval never collects.
const minCollect = 1024

// Options configures an Interpreter.
type Options struct {
	Out      io.Writer // display output; nil discards
	Diag     io.Writer // assertion failure reports; nil discards
	MaxDepth int       // 0 means DefaultMaxDepth
}

// Interpreter holds the global environment across calls to Eval.
type Interpreter struct {
	opts     Options
	globals  map[string]vm.Value
	closures map[uint32]*closure
	next     uint32 // next closure handle; handles are never reused
	nextGC   int
	depth    int
	failures int
}

type closure struct {
	lambda *compiler.Lambda
	env    *env
}

// env is one lexical scope. Bindings never change after creation.
type env struct {
	vars   map[string]vm.Value
	parent *env
}

func (e *env) lookup(name string) (vm.Value, bool) {
	for ; e != nil; e = e.parent {
		if v, ok := e.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// New creates an interpreter with the predefined globals bound.
func New(opts Options) *Interpreter {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	in := &Interpreter{
		opts:     opts,
		globals:  make(map[string]vm.Value),
		closures: make(map[uint32]*closure),
		nextGC:   minCollect,
	}
	values := vm.PredefinedValues()
	for i, name := range vm.PredefinedNames() {
		in.globals[name] = values[i]
	}
	return in
}

// Failures returns the number of failed assertions so far.
func (in *Interpreter) Failures() int {
	return in.failures
}

// EvalSource parses and evaluates src.
func (in *Interpreter) EvalSource(src string) (vm.Value, error) {
	exprs, err := compiler.Parse(src)
	if err != nil {
		return nil, err
	}
	return in.Eval(exprs)
}

// Eval evaluates top-level expressions in order and returns the value of
// the last one that is not a define, or nil if there is none.
//
// Closures unreachable from the globals are collected between top-level
// expressions once the table has doubled since the last collection.
func (in *Interpreter) Eval(exprs []compiler.Expr) (vm.Value, error) {
	var result vm.Value = vm.Nil
	for _, expr := range exprs {
		if def, ok := expr.(*compiler.Define); ok {
			if err := in.define(def); err != nil {
				return nil, err
			}
		} else {
			v, err := in.eval(expr, nil)
			if err != nil {
				return nil, err
			}
			result = v
		}
		if len(in.closures) >= in.nextGC {
			in.collect(result)
		}
	}
	return result, nil
}

// Live returns the number of closures in the table.
func (in *Interpreter) Live() int {
	return len(in.closures)
}

// Collect frees every closure that is not reachable from the globals or
// from keep. It must not be called while Eval is running.
func (in *Interpreter) Collect(keep ...vm.Value) int {
	return in.collect(keep...)
}

func (in *Interpreter) collect(keep ...vm.Value) int {
	marked := make(map[uint32]bool, len(in.closures))
	seen := make(map[*env]bool)
	work := make([]vm.Value, 0, len(in.globals)+len(keep))
	for _, v := range in.globals {
		work = append(work, v)
	}
	work = append(work, keep...)

	for len(work) > 0 {
		v := work[len(work)-1]
		work = work[:len(work)-1]
		ref, ok := v.(vm.ClosureRef)
		if !ok || marked[ref.Handle] {
			continue
		}
		c, ok := in.closures[ref.Handle]
		if !ok {
			continue
		}
		marked[ref.Handle] = true
		for e := c.env; e != nil && !seen[e]; e = e.parent {
			seen[e] = true
			for _, bound := range e.vars {
				work = append(work, bound)
			}
		}
	}

	freed := 0
	for h := range in.closures {
		if !marked[h] {
			delete(in.closures, h)
			freed++
		}
	}
	in.nextGC = max(2*len(in.closures), minCollect)
	log.Debugf("collected %d closures, %d live", freed, len(in.closures))
	return freed
}

func (in *Interpreter) define(def *compiler.Define) error {
	if _, exists := in.globals[def.Name]; exists {
		return errorAt(def, compiler.ErrRedefined, def.Name)
	}
	v, err := in.eval(def.Value, nil)
	if err != nil {
		return err
	}
	in.globals[def.Name] = v
	log.Debugf("defined %s = %s", def.Name, v)
	return nil
}

func (in *Interpreter) eval(expr compiler.Expr, e *env) (vm.Value, error) {
	switch n := expr.(type) {
	case *compiler.IntLiteral:
		return vm.Int(n.Value), nil
	case *compiler.BoolLiteral:
		return vm.Bool(n.Value), nil
	case *compiler.Identifier:
		if v, ok := e.lookup(n.Name); ok {
			return v, nil
		}
		if v, ok := in.globals[n.Name]; ok {
			return v, nil
		}
		return nil, errorAt(n, compiler.ErrUndefined, n.Name)
	case *compiler.If:
		return in.evalIf(n, e)
	case *compiler.Lambda:
		return in.makeClosure(n, e)
	case *compiler.Call:
		return in.evalCall(n, e)
	case *compiler.Define:
		return nil, errorAt(n, compiler.ErrDefineNotTopLevel, n.Name)
	default:
		return nil, fmt.Errorf("interp: unknown expression type %T", expr)
	}
}

func (in *Interpreter) evalIf(n *compiler.If, e *env) (vm.Value, error) {
	cond, err := in.eval(n.Cond, e)
	if err != nil {
		return nil, err
	}
	b, ok := cond.(vm.Bool)
	if !ok {
		return nil, fmt.Errorf("%w: if condition must be bool, got %s", vm.ErrType, cond.Tag())
	}
	if b {
		return in.eval(n.Then, e)
	}
	if n.Else == nil {
		return vm.Nil, nil
	}
	return in.eval(n.Else, e)
}

func (in *Interpreter) makeClosure(n *compiler.Lambda, e *env) (vm.Value, error) {
	seen := make(map[string]bool, len(n.Params))
	for _, p := range n.Params {
		if seen[p] {
			return nil, errorAt(n, compiler.ErrDuplicateParam, p)
		}
		seen[p] = true
	}
	handle := in.next
	in.next++
	in.closures[handle] = &closure{lambda: n, env: e}
	return vm.ClosureRef{Handle: handle, Arity: len(n.Params)}, nil
}

func (in *Interpreter) evalCall(n *compiler.Call, e *env) (vm.Value, error) {
	args := make([]vm.Value, len(n.Args))
	for i, arg := range n.Args {
		v, err := in.eval(arg, e)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	callee, err := in.eval(n.Callee, e)
	if err != nil {
		return nil, err
	}

	switch f := callee.(type) {
	case vm.BuiltinRef:
		if f.Name == "assert" && len(args) == 1 {
			return in.assert(n, args[0])
		}
		return vm.CallBuiltin(f, in.opts.Out, args)
	case vm.ClosureRef:
		return in.apply(f, args)
	default:
		return nil, fmt.Errorf("%w: %s", vm.ErrNotCallable, callee)
	}
}

// assert reports a false condition instead of stopping evaluation.
func (in *Interpreter) assert(n *compiler.Call, v vm.Value) (vm.Value, error) {
	b, ok := v.(vm.Bool)
	if !ok {
		return nil, fmt.Errorf("%w: assert expects bool, got %s", vm.ErrType, v.Tag())
	}
	if !b {
		in.failures++
		pos := n.Span().Start
		if in.opts.Diag != nil {
			fmt.Fprintf(in.opts.Diag, "%d:%d: assertion failed\n", pos.Line, pos.Column)
		}
	}
	return vm.Nil, nil
}

func (in *Interpreter) apply(ref vm.ClosureRef, args []vm.Value) (vm.Value, error) {
	c, ok := in.closures[ref.Handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", vm.ErrBadHandle, ref.Handle)
	}
	if len(args) != len(c.lambda.Params) {
		return nil, fmt.Errorf("%w: closure takes %d arguments, got %d", vm.ErrArity, len(c.lambda.Params), len(args))
	}
	if in.depth >= in.opts.MaxDepth {
		return nil, fmt.Errorf("%w: call depth %d", vm.ErrStackOverflow, in.depth)
	}

	frame := &env{vars: make(map[string]vm.Value, len(args)+1), parent: c.env}
	if c.lambda.Name != "" {
		frame.vars[c.lambda.Name] = ref
	}
	for i, p := range c.lambda.Params {
		frame.vars[p] = args[i]
	}

	in.depth++
	defer func() { in.depth-- }()
	return in.eval(c.lambda.Body, frame)
}

func errorAt(n compiler.Node, kind error, name string) error {
	return &compiler.Error{Pos: n.Span().Start, Err: kind, Msg: name}
}
