package compiler

import (
	"errors"
	"fmt"
)

// Compile-time failures. Each is fatal to the compilation it occurs in.
var (
	ErrSyntax            = errors.New("syntax error")
	ErrUndefined         = errors.New("undefined identifier")
	ErrRedefined         = errors.New("global already defined")
	ErrDefineNotTopLevel = errors.New("define is only allowed at top level")
	ErrDuplicateParam    = errors.New("duplicate parameter")
)

// Error is a compile or parse error at a source position.
type Error struct {
	Pos Position
	Err error  // one of the sentinel errors above
	Msg string // detail, usually the offending name
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%d:%d: %v", e.Pos.Line, e.Pos.Column, e.Err)
	}
	return fmt.Sprintf("%d:%d: %v: %s", e.Pos.Line, e.Pos.Column, e.Err, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func errorAt(pos Position, kind error, format string, args ...interface{}) *Error {
	return &Error{Pos: pos, Err: kind, Msg: fmt.Sprintf(format, args...)}
}
