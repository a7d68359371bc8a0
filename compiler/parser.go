package compiler

import (
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent reader for s-expressions
// ---------------------------------------------------------------------------

// Parser parses Lamb source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	errors    []error
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole program and returns its top-level expressions.
func Parse(input string) ([]Expr, error) {
	p := NewParser(input)
	exprs := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, errs[0]
	}
	return exprs, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, errorAt(p.curToken.Pos, ErrSyntax, format, args...))
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []error {
	return p.errors
}

// ParseProgram parses top-level expressions until EOF. Parsing stops at the
// first error.
func (p *Parser) ParseProgram() []Expr {
	var exprs []Expr
	for !p.curTokenIs(TokenEOF) {
		expr := p.ParseExpression()
		if expr == nil {
			return nil
		}
		exprs = append(exprs, expr)
	}
	return exprs
}

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	tok := p.curToken
	switch tok.Type {
	case TokenInteger:
		return p.parseInteger()
	case TokenBool:
		p.nextToken()
		return &BoolLiteral{SpanVal: atomSpan(tok), Value: tok.Literal == "#t"}
	case TokenSymbol:
		p.nextToken()
		return &Identifier{SpanVal: atomSpan(tok), Name: tok.Literal}
	case TokenLParen:
		return p.parseList()
	case TokenRParen:
		p.errorf("unexpected )")
	case TokenEOF:
		p.errorf("unexpected end of input")
	default:
		p.errorf("%s", tok.Literal)
	}
	return nil
}

func atomSpan(tok Token) Span {
	end := tok.Pos
	end.Offset += len(tok.Literal)
	end.Column += len(tok.Literal)
	return Span{Start: tok.Pos, End: end}
}

func (p *Parser) parseInteger() Expr {
	tok := p.curToken
	v, err := strconv.ParseInt(tok.Literal, 10, 32)
	if err != nil {
		p.errorf("integer %s out of range", tok.Literal)
		return nil
	}
	p.nextToken()
	return &IntLiteral{SpanVal: atomSpan(tok), Value: int32(v)}
}

// parseList parses a parenthesized form: a special form or a call.
func (p *Parser) parseList() Expr {
	start := p.curToken.Pos
	p.nextToken() // consume (

	if p.curTokenIs(TokenSymbol) {
		switch p.curToken.Literal {
		case "if":
			return p.parseIf(start)
		case "define":
			return p.parseDefine(start)
		case "lambda":
			return p.parseLambda(start)
		}
	}
	if p.curTokenIs(TokenRParen) {
		p.errorf("empty application")
		return nil
	}

	callee := p.ParseExpression()
	if callee == nil {
		return nil
	}
	args, end, ok := p.parseUntilClose()
	if !ok {
		return nil
	}
	return &Call{SpanVal: Span{Start: start, End: end}, Callee: callee, Args: args}
}

// parseUntilClose parses expressions up to and including the closing paren.
func (p *Parser) parseUntilClose() ([]Expr, Position, bool) {
	var exprs []Expr
	for !p.curTokenIs(TokenRParen) {
		expr := p.ParseExpression()
		if expr == nil {
			return nil, Position{}, false
		}
		exprs = append(exprs, expr)
	}
	end := p.curToken.Pos
	p.nextToken()
	return exprs, end, true
}

// expectClose consumes a closing paren and returns its position.
func (p *Parser) expectClose(form string) (Position, bool) {
	if !p.curTokenIs(TokenRParen) {
		if p.curTokenIs(TokenEOF) {
			p.errorf("unterminated %s", form)
		} else {
			p.errorf("too many operands in %s", form)
		}
		return Position{}, false
	}
	end := p.curToken.Pos
	p.nextToken()
	return end, true
}

// parseIf parses (if cond then [else]).
func (p *Parser) parseIf(start Position) Expr {
	p.nextToken() // consume if
	parts, end, ok := p.parseUntilClose()
	if !ok {
		return nil
	}
	if len(parts) < 2 || len(parts) > 3 {
		p.errors = append(p.errors, errorAt(start, ErrSyntax, "if takes 2 or 3 operands, got %d", len(parts)))
		return nil
	}
	n := &If{SpanVal: Span{Start: start, End: end}, Cond: parts[0], Then: parts[1]}
	if len(parts) == 3 {
		n.Else = parts[2]
	}
	return n
}

// parseDefine parses (define name value) and (define (name params...) body).
func (p *Parser) parseDefine(start Position) Expr {
	p.nextToken() // consume define

	if p.curTokenIs(TokenLParen) {
		sigPos := p.curToken.Pos
		p.nextToken()
		names, ok := p.parseNames("define")
		if !ok {
			return nil
		}
		if len(names) == 0 {
			p.errors = append(p.errors, errorAt(sigPos, ErrSyntax, "define needs a name"))
			return nil
		}
		body := p.ParseExpression()
		if body == nil {
			return nil
		}
		end, ok := p.expectClose("define")
		if !ok {
			return nil
		}
		span := Span{Start: start, End: end}
		return &Define{
			SpanVal: span,
			Name:    names[0],
			Value:   &Lambda{SpanVal: span, Name: names[0], Params: names[1:], Body: body},
		}
	}

	if !p.curTokenIs(TokenSymbol) {
		p.errorf("define needs a name")
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	value := p.ParseExpression()
	if value == nil {
		return nil
	}
	end, ok := p.expectClose("define")
	if !ok {
		return nil
	}
	if lambda, isLambda := value.(*Lambda); isLambda && lambda.Name == "" {
		lambda.Name = name
	}
	return &Define{SpanVal: Span{Start: start, End: end}, Name: name, Value: value}
}

// parseLambda parses (lambda (params...) body).
func (p *Parser) parseLambda(start Position) Expr {
	p.nextToken() // consume lambda
	if !p.curTokenIs(TokenLParen) {
		p.errorf("lambda needs a parameter list")
		return nil
	}
	p.nextToken()
	params, ok := p.parseNames("lambda")
	if !ok {
		return nil
	}
	body := p.ParseExpression()
	if body == nil {
		return nil
	}
	end, ok := p.expectClose("lambda")
	if !ok {
		return nil
	}
	return &Lambda{SpanVal: Span{Start: start, End: end}, Params: params, Body: body}
}

// parseNames parses symbols up to and including a closing paren.
func (p *Parser) parseNames(form string) ([]string, bool) {
	var names []string
	for !p.curTokenIs(TokenRParen) {
		if !p.curTokenIs(TokenSymbol) {
			p.errorf("%s parameter must be a name, got %s", form, p.curToken.Type)
			return nil, false
		}
		names = append(names, p.curToken.Literal)
		p.nextToken()
	}
	p.nextToken()
	return names, true
}
