// Package compiler turns Lamb source text into VM bytecode.
//
// The pipeline is lexer, parser (s-expressions to AST) and codegen. Codegen
// resolves identifiers against lexical frames, turning references to
// enclosing locals into closure captures, and falls back to the global
// table shared with the VM.
package compiler
