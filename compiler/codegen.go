package compiler

import (
	"fmt"

	"github.com/chazu/lamb/vm"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Codegen: compile AST to bytecode
// ---------------------------------------------------------------------------

var log = commonlog.GetLogger("lamb.compiler")

// Program is a compiled instruction stream plus the global table it was
// compiled against. Globals[i] names global slot i.
type Program struct {
	Code    []byte
	Globals []string
	Start   int // offset of the first instruction of the latest batch
}

// Compiler compiles top-level expressions into one append-only instruction
// stream. Globals persist across calls to Compile, so a REPL can compile
// input batch by batch against the same table.
type Compiler struct {
	builder     *vm.Builder
	globals     []string
	globalIndex map[string]int
	frames      []*frame
}

// NewCompiler creates a compiler whose global table holds the predefined
// builtins.
func NewCompiler() *Compiler {
	c := &Compiler{
		builder:     vm.NewBuilder(),
		globalIndex: make(map[string]int),
	}
	for _, name := range vm.PredefinedNames() {
		c.addGlobal(name)
	}
	return c
}

// Compile compiles a whole program with a fresh compiler.
func Compile(exprs []Expr) (*Program, error) {
	return NewCompiler().Compile(exprs)
}

// CompileSource parses and compiles source text with a fresh compiler.
func CompileSource(src string) (*Program, error) {
	return NewCompiler().CompileSource(src)
}

// CompileSource parses src and compiles it as the next batch.
func (c *Compiler) CompileSource(src string) (*Program, error) {
	exprs, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return c.Compile(exprs)
}

// Compile appends the code for exprs to the stream. On error nothing from
// this batch survives: emitted bytes and new globals are rolled back.
func (c *Compiler) Compile(exprs []Expr) (*Program, error) {
	start := c.builder.Len()
	nglobals := len(c.globals)

	for _, expr := range exprs {
		if err := c.compileTopLevel(expr); err != nil {
			c.rollback(start, nglobals)
			return nil, err
		}
	}

	code := make([]byte, c.builder.Len())
	copy(code, c.builder.Bytes())
	log.Debugf("compiled %d expressions: %d bytes, %d globals", len(exprs), len(code)-start, len(c.globals))
	return &Program{Code: code, Globals: c.Globals(), Start: start}, nil
}

// Globals returns a copy of the global table, in slot order.
func (c *Compiler) Globals() []string {
	return append([]string(nil), c.globals...)
}

// Mark is a compiler position that Reset can return to.
type Mark struct {
	codeLen  int
	nglobals int
}

// Mark records the current position, so a batch that compiled but failed
// later (at run time, say) can still be undone.
func (c *Compiler) Mark() Mark {
	return Mark{codeLen: c.builder.Len(), nglobals: len(c.globals)}
}

// Reset discards all code and globals added since m.
func (c *Compiler) Reset(m Mark) {
	c.rollback(m.codeLen, m.nglobals)
}

// Globals returns the number of globals that existed when the mark was taken.
func (m Mark) Globals() int {
	return m.nglobals
}

func (c *Compiler) rollback(codeLen, nglobals int) {
	c.builder.Truncate(codeLen)
	for _, name := range c.globals[nglobals:] {
		delete(c.globalIndex, name)
	}
	c.globals = c.globals[:nglobals]
	c.frames = nil
}

func (c *Compiler) addGlobal(name string) int {
	slot := len(c.globals)
	c.globals = append(c.globals, name)
	c.globalIndex[name] = slot
	return slot
}

func (c *Compiler) emit(in vm.Instr) {
	c.builder.Emit(in)
}

// ---------------------------------------------------------------------------
// Top level
// ---------------------------------------------------------------------------

// compileTopLevel compiles a define, or an expression whose value is popped.
func (c *Compiler) compileTopLevel(expr Expr) error {
	if def, ok := expr.(*Define); ok {
		return c.compileDefine(def)
	}
	if err := c.compileExpr(expr); err != nil {
		return err
	}
	c.emit(vm.Pop())
	return nil
}

func (c *Compiler) compileDefine(def *Define) error {
	if _, exists := c.globalIndex[def.Name]; exists {
		return errorAt(def.Span().Start, ErrRedefined, "%s", def.Name)
	}
	if err := c.compileExpr(def.Value); err != nil {
		return err
	}
	c.addGlobal(def.Name)
	c.emit(vm.DefGlobal())
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) compileExpr(expr Expr) error {
	switch e := expr.(type) {
	case *IntLiteral:
		c.emit(vm.Push(vm.Int(e.Value)))
	case *BoolLiteral:
		c.emit(vm.Push(vm.Bool(e.Value)))
	case *Identifier:
		return c.compileIdentifier(e)
	case *If:
		return c.compileIf(e)
	case *Call:
		return c.compileCall(e)
	case *Lambda:
		return c.compileLambda(e)
	case *Define:
		return errorAt(e.Span().Start, ErrDefineNotTopLevel, "%s", e.Name)
	default:
		return errorAt(expr.Span().Start, ErrSyntax, "unknown expression type %T", expr)
	}
	return nil
}

func (c *Compiler) compileIdentifier(id *Identifier) error {
	if slot, ok := c.resolveLocal(id.Name); ok {
		c.emit(vm.Get(slot))
		return nil
	}
	if slot, ok := c.globalIndex[id.Name]; ok {
		c.emit(vm.GetGlobal(slot))
		return nil
	}
	return errorAt(id.Span().Start, ErrUndefined, "%s", id.Name)
}

// compileIf lays out: cond, JMP_IF then, else, JMP end, then:, end:.
func (c *Compiler) compileIf(n *If) error {
	if err := c.compileExpr(n.Cond); err != nil {
		return err
	}
	toThen := c.builder.EmitJump(vm.OpJmpIf)

	if n.Else != nil {
		if err := c.compileExpr(n.Else); err != nil {
			return err
		}
	} else {
		c.emit(vm.Push(vm.Nil))
	}
	toEnd := c.builder.EmitJump(vm.OpJmp)

	c.builder.PatchJump(toThen, c.builder.Len())
	if err := c.compileExpr(n.Then); err != nil {
		return err
	}
	c.builder.PatchJump(toEnd, c.builder.Len())
	return nil
}

func (c *Compiler) compileCall(n *Call) error {
	for _, arg := range n.Args {
		if err := c.compileExpr(arg); err != nil {
			return err
		}
	}
	if err := c.compileExpr(n.Callee); err != nil {
		return err
	}
	c.emit(vm.Call(len(n.Args)))
	return nil
}

// compileLambda emits the body inline behind a jump, then the capture
// loads and MAKE_LAMBDA in the enclosing context.
func (c *Compiler) compileLambda(n *Lambda) error {
	f, ok := newFrame(n.Name, n.Params)
	if !ok {
		return errorAt(n.Span().Start, ErrDuplicateParam, "%v", n.Params)
	}

	c.frames = append(c.frames, f)
	skip := c.builder.EmitJump(vm.OpJmp)
	entry := c.builder.Len()
	if err := c.compileExpr(n.Body); err != nil {
		return err
	}
	c.emit(vm.Return())
	c.builder.PatchJump(skip, c.builder.Len())
	c.frames = c.frames[:len(c.frames)-1]

	// Captures were recorded in first-reference order; the VM copies them
	// into the closure in the order they are pushed here.
	for _, cp := range f.captures {
		c.emit(vm.Get(cp.parentSlot))
	}
	c.emit(vm.MakeLambda(entry, len(n.Params), len(f.captures)))
	return nil
}

// String renders a program's disassembly, for debugging.
func (p *Program) String() string {
	listing, err := vm.Disassemble(p.Code, p.Globals)
	if err != nil {
		return fmt.Sprintf("%s; error: %v\n", listing, err)
	}
	return listing
}
