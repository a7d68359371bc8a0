package compiler

import (
	"errors"
	"testing"
)

func TestParserLiterals(t *testing.T) {
	tests := []struct {
		input string
		check func(Expr) bool
		desc  string
	}{
		{"42", func(e Expr) bool { return e.(*IntLiteral).Value == 42 }, "integer"},
		{"-5", func(e Expr) bool { return e.(*IntLiteral).Value == -5 }, "negative integer"},
		{"2147483647", func(e Expr) bool { return e.(*IntLiteral).Value == 2147483647 }, "max int"},
		{"#t", func(e Expr) bool { return e.(*BoolLiteral).Value }, "true"},
		{"#f", func(e Expr) bool { return !e.(*BoolLiteral).Value }, "false"},
		{"foo", func(e Expr) bool { return e.(*Identifier).Name == "foo" }, "identifier"},
	}

	for _, tc := range tests {
		p := NewParser(tc.input)
		expr := p.ParseExpression()
		if len(p.Errors()) > 0 {
			t.Errorf("%s: parse errors: %v", tc.desc, p.Errors())
			continue
		}
		if expr == nil {
			t.Errorf("%s: nil expression", tc.desc)
			continue
		}
		if !tc.check(expr) {
			t.Errorf("%s: check failed for %q", tc.desc, tc.input)
		}
	}
}

func TestParserIf(t *testing.T) {
	exprs, err := Parse("(if c 1 2) (if c 1)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	full := exprs[0].(*If)
	if full.Cond.(*Identifier).Name != "c" || full.Then.(*IntLiteral).Value != 1 || full.Else.(*IntLiteral).Value != 2 {
		t.Errorf("unexpected if: %+v", full)
	}
	if short := exprs[1].(*If); short.Else != nil {
		t.Errorf("two-armed if has else %v", short.Else)
	}
}

func TestParserDefineForms(t *testing.T) {
	exprs, err := Parse("(define x 5) (define (f a b) a) (define g (lambda (y) y))")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(exprs) != 3 {
		t.Fatalf("got %d expressions, want 3", len(exprs))
	}

	x := exprs[0].(*Define)
	if x.Name != "x" || x.Value.(*IntLiteral).Value != 5 {
		t.Errorf("define x = %+v", x)
	}

	f := exprs[1].(*Define)
	fl, ok := f.Value.(*Lambda)
	if !ok {
		t.Fatalf("define f value = %T, want *Lambda", f.Value)
	}
	if fl.Name != "f" || len(fl.Params) != 2 || fl.Params[0] != "a" || fl.Params[1] != "b" {
		t.Errorf("define f lambda = %+v", fl)
	}

	// Defining an anonymous lambda names it, so its body can recurse.
	g := exprs[2].(*Define)
	if gl := g.Value.(*Lambda); gl.Name != "g" {
		t.Errorf("define g lambda name = %q, want g", gl.Name)
	}
}

func TestParserCall(t *testing.T) {
	exprs, err := Parse("((lambda (x) x) (+ 1 2))")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	call := exprs[0].(*Call)
	if _, ok := call.Callee.(*Lambda); !ok {
		t.Errorf("callee = %T, want *Lambda", call.Callee)
	}
	if len(call.Args) != 1 {
		t.Fatalf("args = %d, want 1", len(call.Args))
	}
	inner := call.Args[0].(*Call)
	if inner.Callee.(*Identifier).Name != "+" || len(inner.Args) != 2 {
		t.Errorf("inner call = %+v", inner)
	}
}

func TestParserSpans(t *testing.T) {
	exprs, err := Parse("\n  (f 1)")
	if err != nil {
		t.Fatal(err)
	}
	span := exprs[0].Span()
	if span.Start.Line != 2 || span.Start.Column != 3 {
		t.Errorf("start = %d:%d, want 2:3", span.Start.Line, span.Start.Column)
	}
	if span.End.Column != 7 {
		t.Errorf("end column = %d, want 7", span.End.Column)
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		input string
		desc  string
	}{
		{"(", "unterminated list"},
		{")", "stray close"},
		{"()", "empty application"},
		{"(if 1)", "if with one operand"},
		{"(if 1 2 3 4)", "if with four operands"},
		{"(define)", "define without name"},
		{"(define 1 2)", "define numeric name"},
		{"(define x 1 2)", "define extra operand"},
		{"(define () 1)", "define empty signature"},
		{"(lambda x x)", "lambda without list"},
		{"(lambda (1) x)", "lambda numeric param"},
		{"(lambda (x) x x)", "lambda two bodies"},
		{"99999999999", "integer overflow"},
		{"#q", "bad hash literal"},
	}

	for _, tc := range tests {
		_, err := Parse(tc.input)
		if err == nil {
			t.Errorf("%s: expected error for %q", tc.desc, tc.input)
			continue
		}
		if !errors.Is(err, ErrSyntax) {
			t.Errorf("%s: error %v is not ErrSyntax", tc.desc, err)
		}
	}
}

func TestParserStopsAtFirstError(t *testing.T) {
	p := NewParser("(+ 1 2) ) (f")
	if exprs := p.ParseProgram(); exprs != nil {
		t.Errorf("ParseProgram returned %d expressions on error", len(exprs))
	}
	if len(p.Errors()) != 1 {
		t.Errorf("got %d errors, want 1", len(p.Errors()))
	}
}
