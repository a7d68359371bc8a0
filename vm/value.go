package vm

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Value is a Lamb runtime value.
//
// The set of implementations is closed: Nil, Int, Bool, BuiltinRef and
// ClosureRef. Every value except ClosureRef is self-contained. A ClosureRef
// is only a handle; the closure it names is owned by the Heap.
type Value interface {
	Tag() Tag
	String() string
	value() // marker method
}

// Tag is the discriminant of a Value. It doubles as the leading byte of a
// serialized value.
type Tag byte

const (
	TagNil     Tag = 0x00
	TagInt     Tag = 0x01
	TagBool    Tag = 0x02
	TagBuiltin Tag = 0x03 // never serialized
	TagClosure Tag = 0x04 // never serialized
)

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagInt:
		return "int"
	case TagBool:
		return "bool"
	case TagBuiltin:
		return "builtin"
	case TagClosure:
		return "closure"
	default:
		return fmt.Sprintf("Tag(0x%02X)", byte(t))
	}
}

// ---------------------------------------------------------------------------
// Value kinds
// ---------------------------------------------------------------------------

// NilValue is the type of Nil.
type NilValue struct{}

// Nil is the only NilValue.
var Nil Value = NilValue{}

func (NilValue) Tag() Tag       { return TagNil }
func (NilValue) String() string { return "nil" }
func (NilValue) value()         {}

// Int is a fixed-width signed integer. Arithmetic wraps.
type Int int32

func (Int) Tag() Tag         { return TagInt }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }
func (Int) value()           {}

// Bool is a boolean.
type Bool bool

func (Bool) Tag() Tag { return TagBool }
func (b Bool) String() string {
	if b {
		return "#t"
	}
	return "#f"
}
func (Bool) value() {}

// BuiltinRef names an entry in the builtin table.
type BuiltinRef struct {
	Name  string
	Arity int
}

func (BuiltinRef) Tag() Tag         { return TagBuiltin }
func (b BuiltinRef) String() string { return fmt.Sprintf("<builtin %s/%d>", b.Name, b.Arity) }
func (BuiltinRef) value()           {}

// ClosureRef is a handle to a heap-allocated Closure.
type ClosureRef struct {
	Handle uint32
	Arity  int
}

func (ClosureRef) Tag() Tag         { return TagClosure }
func (c ClosureRef) String() string { return fmt.Sprintf("<closure #%d/%d>", c.Handle, c.Arity) }
func (ClosureRef) value()           {}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// EncodedSize returns the number of bytes AppendValue writes for v.
// It panics for values that cannot be serialized.
func EncodedSize(v Value) int {
	switch v.(type) {
	case NilValue:
		return 1
	case Int:
		return 5
	case Bool:
		return 2
	default:
		panic(fmt.Sprintf("vm: %s values are not serializable", v.Tag()))
	}
}

// AppendValue appends the encoding of v to buf.
//
// Only Nil, Int and Bool appear in an instruction stream. Encoding a
// BuiltinRef or ClosureRef is a bug in the caller and panics.
func AppendValue(buf []byte, v Value) []byte {
	switch x := v.(type) {
	case NilValue:
		return append(buf, byte(TagNil))
	case Int:
		buf = append(buf, byte(TagInt))
		return binary.BigEndian.AppendUint32(buf, uint32(int32(x)))
	case Bool:
		var b byte
		if x {
			b = 1
		}
		return append(buf, byte(TagBool), b)
	default:
		panic(fmt.Sprintf("vm: %s values are not serializable", v.Tag()))
	}
}

// EncodeValue returns the encoding of v.
func EncodeValue(v Value) []byte {
	return AppendValue(make([]byte, 0, EncodedSize(v)), v)
}

// DecodeValue decodes the value starting at data[offset] and reports how
// many bytes it occupied.
func DecodeValue(data []byte, offset int) (Value, int, error) {
	if offset < 0 || offset >= len(data) {
		return nil, 0, decodeErrorf(offset, "value tag out of range")
	}
	switch tag := Tag(data[offset]); tag {
	case TagNil:
		return Nil, 1, nil
	case TagInt:
		if offset+5 > len(data) {
			return nil, 0, decodeErrorf(offset, "truncated int payload")
		}
		return Int(int32(binary.BigEndian.Uint32(data[offset+1:]))), 5, nil
	case TagBool:
		if offset+2 > len(data) {
			return nil, 0, decodeErrorf(offset, "truncated bool payload")
		}
		switch data[offset+1] {
		case 0:
			return Bool(false), 2, nil
		case 1:
			return Bool(true), 2, nil
		default:
			return nil, 0, decodeErrorf(offset+1, "invalid bool byte 0x%02X", data[offset+1])
		}
	default:
		return nil, 0, decodeErrorf(offset, "unknown value tag 0x%02X", byte(tag))
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// IsNil reports whether v is Nil.
func IsNil(v Value) bool {
	_, ok := v.(NilValue)
	return ok
}

// Equal compares two values. Closure references compare by handle.
func Equal(a, b Value) bool {
	return a == b
}
