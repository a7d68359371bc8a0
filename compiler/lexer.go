package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for s-expression syntax
// ---------------------------------------------------------------------------

// Lexer tokenizes Lamb source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // column of ch (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()
	switch {
	case l.ch == 0 && l.pos >= len(l.input):
		return Token{Type: TokenEOF, Pos: pos}

	case l.ch == '(':
		l.readChar()
		return Token{Type: TokenLParen, Literal: "(", Pos: pos}

	case l.ch == ')':
		l.readChar()
		return Token{Type: TokenRParen, Literal: ")", Pos: pos}

	case l.ch == '#':
		return l.readHash(pos)

	default:
		return l.readAtom(pos)
	}
}

// Tokens returns every token up to and including EOF or the first error.
func (l *Lexer) Tokens() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return tokens
		}
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ';':
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
		case unicode.IsSpace(l.ch):
			l.readChar()
		default:
			return
		}
	}
}

func (l *Lexer) atEOF() bool {
	return l.ch == 0 && l.pos >= len(l.input)
}

func isDelimiter(r rune) bool {
	return r == '(' || r == ')' || r == ';' || unicode.IsSpace(r)
}

// readWord consumes characters up to the next delimiter.
func (l *Lexer) readWord() string {
	start := l.pos
	for !l.atEOF() && !isDelimiter(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readHash(pos Position) Token {
	word := l.readWord()
	switch word {
	case "#t", "#true":
		return Token{Type: TokenBool, Literal: "#t", Pos: pos}
	case "#f", "#false":
		return Token{Type: TokenBool, Literal: "#f", Pos: pos}
	default:
		return Token{Type: TokenError, Literal: "unknown literal " + word, Pos: pos}
	}
}

// readAtom reads an integer or a symbol. A word is an integer when it is an
// optional sign followed by one or more digits.
func (l *Lexer) readAtom(pos Position) Token {
	word := l.readWord()
	if isInteger(word) {
		return Token{Type: TokenInteger, Literal: word, Pos: pos}
	}
	return Token{Type: TokenSymbol, Literal: word, Pos: pos}
}

func isInteger(word string) bool {
	digits := strings.TrimPrefix(strings.TrimPrefix(word, "-"), "+")
	if digits == "" || len(word)-len(digits) > 1 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
