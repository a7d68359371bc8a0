package vm

import (
	"fmt"
	"io"
)

// ---------------------------------------------------------------------------
// Builtin table
// ---------------------------------------------------------------------------

// BuiltinFunc implements a primitive. Arity has been checked by the caller;
// out receives anything the primitive prints.
type BuiltinFunc func(out io.Writer, args []Value) (Value, error)

// Builtin describes one primitive function.
type Builtin struct {
	Name  string
	Arity int
	Fn    BuiltinFunc
}

// Ref returns the value that names this builtin at run time.
func (b *Builtin) Ref() BuiltinRef {
	return BuiltinRef{Name: b.Name, Arity: b.Arity}
}

// Builtins is the fixed primitive table. The compiler and the VM both seed
// their global tables from it, so entry i always lives in global slot i.
var Builtins = []Builtin{
	{"+", 2, intOp(func(a, b Int) Value { return a + b })},
	{"-", 2, intOp(func(a, b Int) Value { return a - b })},
	{"*", 2, intOp(func(a, b Int) Value { return a * b })},
	{"<", 2, intOp(func(a, b Int) Value { return Bool(a < b) })},
	{"=", 2, builtinEq},
	{"display", 1, builtinDisplay},
	{"assert", 1, builtinAssert},
	{"isnil", 1, builtinIsNil},
}

// NilGlobal is the name bound to Nil right after the callable builtins.
const NilGlobal = "nil"

var builtinIndex = func() map[string]int {
	m := make(map[string]int, len(Builtins))
	for i, b := range Builtins {
		m[b.Name] = i
	}
	return m
}()

// LookupBuiltin finds a builtin by name.
func LookupBuiltin(name string) (*Builtin, bool) {
	i, ok := builtinIndex[name]
	if !ok {
		return nil, false
	}
	return &Builtins[i], true
}

// PredefinedNames returns the global names that exist before any program
// runs, in slot order.
func PredefinedNames() []string {
	names := make([]string, 0, len(Builtins)+1)
	for _, b := range Builtins {
		names = append(names, b.Name)
	}
	return append(names, NilGlobal)
}

// PredefinedValues returns the values of PredefinedNames, slot for slot.
func PredefinedValues() []Value {
	values := make([]Value, 0, len(Builtins)+1)
	for i := range Builtins {
		values = append(values, Builtins[i].Ref())
	}
	return append(values, Nil)
}

// CallBuiltin checks arity and invokes the named builtin.
func CallBuiltin(ref BuiltinRef, out io.Writer, args []Value) (Value, error) {
	b, ok := LookupBuiltin(ref.Name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown builtin %q", ErrNotCallable, ref.Name)
	}
	if len(args) != b.Arity {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrArity, b.Name, b.Arity, len(args))
	}
	return b.Fn(out, args)
}

// ---------------------------------------------------------------------------
// Primitive implementations
// ---------------------------------------------------------------------------

func intOp(op func(a, b Int) Value) BuiltinFunc {
	return func(_ io.Writer, args []Value) (Value, error) {
		a, ok := args[0].(Int)
		if !ok {
			return nil, fmt.Errorf("%w: expected int, got %s", ErrType, args[0].Tag())
		}
		b, ok := args[1].(Int)
		if !ok {
			return nil, fmt.Errorf("%w: expected int, got %s", ErrType, args[1].Tag())
		}
		return op(a, b), nil
	}
}

func builtinEq(_ io.Writer, args []Value) (Value, error) {
	switch a := args[0].(type) {
	case Int:
		if b, ok := args[1].(Int); ok {
			return Bool(a == b), nil
		}
	case Bool:
		if b, ok := args[1].(Bool); ok {
			return Bool(a == b), nil
		}
	}
	return nil, fmt.Errorf("%w: cannot compare %s with %s", ErrType, args[0].Tag(), args[1].Tag())
}

func builtinDisplay(out io.Writer, args []Value) (Value, error) {
	if out != nil {
		if _, err := fmt.Fprintln(out, args[0]); err != nil {
			return nil, err
		}
	}
	return Nil, nil
}

func builtinAssert(_ io.Writer, args []Value) (Value, error) {
	b, ok := args[0].(Bool)
	if !ok {
		return nil, fmt.Errorf("%w: assert expects bool, got %s", ErrType, args[0].Tag())
	}
	if !b {
		return nil, ErrAssertion
	}
	return Nil, nil
}

func builtinIsNil(_ io.Writer, args []Value) (Value, error) {
	return Bool(IsNil(args[0])), nil
}
