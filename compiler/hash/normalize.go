package hash

import (
	"fmt"

	"github.com/chazu/lamb/compiler"
)

// ---------------------------------------------------------------------------
// AST Normalization: compiler AST → frozen hashing AST
//
// Walks the compiler's working AST and produces the frozen hashing AST with
// de Bruijn indices for parameters and lambda self references, and names
// for globals.
// ---------------------------------------------------------------------------

// scope tracks the bindings of one lambda.
type scope struct {
	vars map[string]uint16 // variable name → slot index
}

// normalizer holds state for the normalization walk.
type normalizer struct {
	scopes []scope // scope stack: [0]=outermost lambda
}

// NormalizeProgram transforms top-level forms into a frozen HProgram.
func NormalizeProgram(exprs []compiler.Expr) *HProgram {
	n := &normalizer{}
	forms := make([]HNode, len(exprs))
	for i, e := range exprs {
		forms[i] = n.normalizeExpr(e)
	}
	return &HProgram{Forms: forms}
}

// NormalizeExpr transforms a single expression.
func NormalizeExpr(expr compiler.Expr) HNode {
	return (&normalizer{}).normalizeExpr(expr)
}

func (n *normalizer) normalizeExpr(expr compiler.Expr) HNode {
	switch e := expr.(type) {
	case *compiler.IntLiteral:
		return &HIntLiteral{Value: e.Value}
	case *compiler.BoolLiteral:
		return &HBoolLiteral{Value: e.Value}
	case *compiler.Identifier:
		return n.resolveVariable(e.Name)
	case *compiler.If:
		h := &HIf{Cond: n.normalizeExpr(e.Cond), Then: n.normalizeExpr(e.Then)}
		if e.Else != nil {
			h.Else = n.normalizeExpr(e.Else)
		}
		return h
	case *compiler.Call:
		args := make([]HNode, len(e.Args))
		for i, a := range e.Args {
			args[i] = n.normalizeExpr(a)
		}
		return &HCall{Callee: n.normalizeExpr(e.Callee), Args: args}
	case *compiler.Lambda:
		return n.normalizeLambda(e)
	case *compiler.Define:
		return &HDefine{Name: e.Name, Value: n.normalizeExpr(e.Value)}
	default:
		// The AST is closed; reaching this means a node type was added
		// without a hashing form.
		panic(fmt.Sprintf("hash: unknown expression type %T", expr))
	}
}

// ---------------------------------------------------------------------------
// Variable resolution → de Bruijn indices
// ---------------------------------------------------------------------------

// resolveVariable resolves a name to HLocalRef or HGlobalRef, in the same
// order codegen resolves identifiers.
func (n *normalizer) resolveVariable(name string) HNode {
	for depth := len(n.scopes) - 1; depth >= 0; depth-- {
		if slot, ok := n.scopes[depth].vars[name]; ok {
			return &HLocalRef{
				ScopeDepth: uint16(len(n.scopes) - 1 - depth),
				SlotIndex:  slot,
			}
		}
	}
	return &HGlobalRef{Name: name}
}

// ---------------------------------------------------------------------------
// Lambda normalization
// ---------------------------------------------------------------------------

func (n *normalizer) normalizeLambda(lambda *compiler.Lambda) *HLambda {
	vars := make(map[string]uint16, len(lambda.Params)+1)
	if lambda.Name != "" {
		vars[lambda.Name] = uint16(len(lambda.Params))
	}
	// Parameters win over the lambda's own name.
	for i, p := range lambda.Params {
		vars[p] = uint16(i)
	}
	n.scopes = append(n.scopes, scope{vars: vars})
	body := n.normalizeExpr(lambda.Body)
	n.scopes = n.scopes[:len(n.scopes)-1]

	return &HLambda{Arity: len(lambda.Params), Body: body}
}
