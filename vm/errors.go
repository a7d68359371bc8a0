package vm

import (
	"errors"
	"fmt"
)

// Decode errors.
var (
	ErrMalformed = errors.New("malformed bytecode")
)

// Runtime errors. Every runtime fault halts execution; the stack and heap
// are not trusted afterwards.
var (
	ErrStackUnderflow = errors.New("stack underflow")
	ErrStackOverflow  = errors.New("stack overflow")
	ErrBadLocal       = errors.New("local index out of range")
	ErrBadGlobal      = errors.New("global index out of range")
	ErrBadHandle      = errors.New("bad heap handle")
	ErrBadJump        = errors.New("jump target out of range")
	ErrBadReturn      = errors.New("return outside of a call")
	ErrArity          = errors.New("arity mismatch")
	ErrType           = errors.New("type mismatch")
	ErrNotCallable    = errors.New("value is not callable")
	ErrAssertion      = errors.New("assertion failed")
)

// DecodeError reports malformed bytes in an instruction stream.
type DecodeError struct {
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed bytecode at offset %d: %s", e.Offset, e.Msg)
}

func (e *DecodeError) Unwrap() error { return ErrMalformed }

func decodeErrorf(offset int, format string, args ...interface{}) error {
	return &DecodeError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// RuntimeError is a fatal execution fault at a given program counter.
type RuntimeError struct {
	PC  int    // offset of the faulting instruction
	Op  Opcode // faulting opcode
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at pc %d (%s): %v", e.PC, e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }
