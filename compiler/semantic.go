package compiler

import (
	"fmt"

	"github.com/chazu/lamb/vm"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: advisory checks that never fail compilation
// ---------------------------------------------------------------------------

// Warning is a suspicious construct that still compiles.
type Warning struct {
	Pos Position
	Msg string
}

func (w Warning) String() string {
	return fmt.Sprintf("%d:%d: warning: %s", w.Pos.Line, w.Pos.Column, w.Msg)
}

// SemanticAnalyzer walks a program looking for code that is legal but
// probably wrong. Hard errors such as undefined names are left to the
// compiler.
type SemanticAnalyzer struct {
	warnings []Warning

	// Globals defined so far, builtins included.
	globals map[string]bool

	// Lambda scopes, innermost last.
	scopes []*lintScope
}

// lintScope tracks the parameters of one lambda and which of them are read.
type lintScope struct {
	self   string
	params []string
	used   map[string]bool
}

func (s *lintScope) has(name string) bool {
	for _, p := range s.params {
		if p == name {
			return true
		}
	}
	return false
}

// NewSemanticAnalyzer creates an analyzer that knows the predefined globals.
func NewSemanticAnalyzer() *SemanticAnalyzer {
	s := &SemanticAnalyzer{globals: make(map[string]bool)}
	for _, name := range vm.PredefinedNames() {
		s.globals[name] = true
	}
	return s
}

// AddKnownGlobal marks name as defined, for analyzing a batch that follows
// earlier ones.
func (s *SemanticAnalyzer) AddKnownGlobal(name string) {
	s.globals[name] = true
}

// Warnings returns accumulated warnings in source order.
func (s *SemanticAnalyzer) Warnings() []Warning {
	return s.warnings
}

func (s *SemanticAnalyzer) warnAt(pos Position, format string, args ...interface{}) {
	s.warnings = append(s.warnings, Warning{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// AnalyzeProgram analyzes top-level expressions in order.
func (s *SemanticAnalyzer) AnalyzeProgram(exprs []Expr) {
	for _, expr := range exprs {
		if def, ok := expr.(*Define); ok {
			s.analyzeExpr(def.Value)
			s.globals[def.Name] = true
			continue
		}
		s.analyzeExpr(expr)
	}
}

func (s *SemanticAnalyzer) analyzeExpr(expr Expr) {
	switch e := expr.(type) {
	case *Identifier:
		s.markUsed(e.Name)
	case *If:
		s.analyzeIf(e)
	case *Call:
		s.analyzeCall(e)
	case *Lambda:
		s.analyzeLambda(e)
	case *Define:
		s.analyzeExpr(e.Value)
	case *IntLiteral, *BoolLiteral:
		// OK
	}
}

// markUsed records a read of name in the scope that binds it.
func (s *SemanticAnalyzer) markUsed(name string) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		scope := s.scopes[i]
		if scope.has(name) {
			scope.used[name] = true
			return
		}
		if scope.self == name {
			return
		}
	}
}

// local reports whether name is bound by an enclosing lambda.
func (s *SemanticAnalyzer) local(name string) bool {
	for _, scope := range s.scopes {
		if scope.has(name) || scope.self == name {
			return true
		}
	}
	return false
}

func (s *SemanticAnalyzer) analyzeIf(n *If) {
	s.analyzeExpr(n.Cond)
	s.analyzeExpr(n.Then)
	if n.Else != nil {
		s.analyzeExpr(n.Else)
	}

	lit, ok := n.Cond.(*BoolLiteral)
	if !ok {
		return
	}
	if lit.Value && n.Else != nil {
		s.warnAt(n.Else.Span().Start, "else branch is never taken")
	} else if !lit.Value {
		s.warnAt(n.Then.Span().Start, "then branch is never taken")
	}
}

func (s *SemanticAnalyzer) analyzeCall(n *Call) {
	s.analyzeExpr(n.Callee)
	for _, arg := range n.Args {
		s.analyzeExpr(arg)
	}

	switch callee := n.Callee.(type) {
	case *IntLiteral, *BoolLiteral:
		s.warnAt(callee.Span().Start, "calling a literal always fails")
	case *Identifier:
		if s.local(callee.Name) {
			return
		}
		if b, ok := vm.LookupBuiltin(callee.Name); ok && len(n.Args) != b.Arity {
			s.warnAt(n.Span().Start, "%s expects %d arguments, got %d", b.Name, b.Arity, len(n.Args))
		}
	}
}

func (s *SemanticAnalyzer) analyzeLambda(n *Lambda) {
	for _, p := range n.Params {
		switch {
		case p == n.Name:
			s.warnAt(n.Span().Start, "parameter %s hides the function's own name", p)
		case s.local(p):
			s.warnAt(n.Span().Start, "parameter %s shadows an enclosing binding", p)
		case s.globals[p]:
			s.warnAt(n.Span().Start, "parameter %s shadows global %s", p, p)
		}
	}

	scope := &lintScope{self: n.Name, params: n.Params, used: make(map[string]bool)}
	s.scopes = append(s.scopes, scope)
	s.analyzeExpr(n.Body)
	s.scopes = s.scopes[:len(s.scopes)-1]

	for _, p := range n.Params {
		if !scope.used[p] {
			s.warnAt(n.Span().Start, "unused parameter %s", p)
		}
	}
}

// ---------------------------------------------------------------------------
// Integration with Compile function
// ---------------------------------------------------------------------------

// Analyze runs semantic analysis on a whole program.
func Analyze(exprs []Expr) []Warning {
	analyzer := NewSemanticAnalyzer()
	analyzer.AnalyzeProgram(exprs)
	return analyzer.Warnings()
}
