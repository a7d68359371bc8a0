// Package hash computes content hashes of Lamb programs that survive
// reformatting and renaming of locals.
package hash

import (
	"crypto/sha256"

	"github.com/chazu/lamb/compiler"
)

// HashProgram computes the SHA-256 content hash of a parsed program.
//
// The hash is computed over a deterministic serialization of the program's
// normalized AST with de Bruijn variable indexing. Programs with equal
// hashes compile to identical code and global tables.
func HashProgram(exprs []compiler.Expr) [32]byte {
	return sha256.Sum256(Serialize(NormalizeProgram(exprs)))
}

// HashSource parses src and hashes the result.
func HashSource(src string) ([32]byte, []compiler.Expr, error) {
	exprs, err := compiler.Parse(src)
	if err != nil {
		return [32]byte{}, nil, err
	}
	return HashProgram(exprs), exprs, nil
}
