package hash

// ---------------------------------------------------------------------------
// Frozen hashing AST types.
//
// These are stripped-down parallels of compiler/ast.go with no Span/position
// data and de Bruijn indices instead of local names. Two programs that
// differ only in whitespace, comments or the names of parameters and
// lambdas produce identical hashing ASTs.
// ---------------------------------------------------------------------------

// HNode is the interface implemented by all hashing AST nodes.
type HNode interface {
	hnode() // marker method
}

type HIntLiteral struct{ Value int32 }
type HBoolLiteral struct{ Value bool }

func (*HIntLiteral) hnode()  {}
func (*HBoolLiteral) hnode() {}

// HLocalRef references a local binding by de Bruijn indices.
// ScopeDepth 0 = current lambda, 1 = the enclosing lambda, etc.
// SlotIndex is the parameter position, or the arity for the lambda itself.
type HLocalRef struct {
	ScopeDepth uint16
	SlotIndex  uint16
}

// HGlobalRef references a global by name. Global names are significant:
// they decide which slot a define fills.
type HGlobalRef struct {
	Name string
}

func (*HLocalRef) hnode()  {}
func (*HGlobalRef) hnode() {}

// HIf is a conditional. Else is nil for the two-armed form.
type HIf struct {
	Cond HNode
	Then HNode
	Else HNode
}

// HLambda drops parameter and self names; only the arity survives.
type HLambda struct {
	Arity int
	Body  HNode
}

type HCall struct {
	Callee HNode
	Args   []HNode
}

func (*HIf) hnode()     {}
func (*HLambda) hnode() {}
func (*HCall) hnode()   {}

// HDefine binds a global name.
type HDefine struct {
	Name  string
	Value HNode
}

// HProgram is an ordered sequence of top-level forms.
type HProgram struct {
	Forms []HNode
}

func (*HDefine) hnode()  {}
func (*HProgram) hnode() {}
