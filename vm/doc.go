// Package vm implements the Lamb virtual machine.
//
// This package contains:
//   - the tagged value union and its byte encoding
//   - opcodes, the instruction writer and reader
//   - the builtin table shared with the compiler
//   - the closure heap and its mark-and-sweep collector
//   - the stack-based execution loop
//   - a disassembler
package vm
