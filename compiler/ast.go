package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for Lamb
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	SpanVal Span
	Value   int32
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// BoolLiteral represents #t or #f.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// Identifier represents a variable reference.
type Identifier struct {
	SpanVal Span
	Name    string
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

// If represents (if cond then [else]). Else is nil when omitted.
type If struct {
	SpanVal Span
	Cond    Expr
	Then    Expr
	Else    Expr
}

func (n *If) Span() Span { return n.SpanVal }
func (n *If) node()      {}
func (n *If) expr()      {}

// Define represents a top-level (define name value).
type Define struct {
	SpanVal Span
	Name    string
	Value   Expr
}

func (n *Define) Span() Span { return n.SpanVal }
func (n *Define) node()      {}
func (n *Define) expr()      {}

// Lambda represents (lambda (params...) body). Name is empty for anonymous
// lambdas; when set, the body can refer to the lambda itself by that name.
type Lambda struct {
	SpanVal Span
	Name    string
	Params  []string
	Body    Expr
}

func (n *Lambda) Span() Span { return n.SpanVal }
func (n *Lambda) node()      {}
func (n *Lambda) expr()      {}

// Call represents (callee args...).
type Call struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) expr()      {}
