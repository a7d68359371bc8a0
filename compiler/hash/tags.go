package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the hashing AST serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// every compile cache keyed by these hashes.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// AST node type tags. Each tag uniquely identifies a node kind in the
// serialized byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Literal values
	TagIntLiteral  byte = 0x01
	TagBoolLiteral byte = 0x02

	// Variable references
	TagLocalRef  byte = 0x03 // de Bruijn indexed
	TagGlobalRef byte = 0x04 // by name

	// Expressions
	TagIf     byte = 0x10
	TagLambda byte = 0x11
	TagCall   byte = 0x12

	// Top level
	TagDefine  byte = 0x20
	TagProgram byte = 0x21

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagIntLiteral, TagBoolLiteral,
	TagLocalRef, TagGlobalRef,
	TagIf, TagLambda, TagCall,
	TagDefine, TagProgram,
}
