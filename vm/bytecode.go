package vm

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

const (
	OpPush       Opcode = 0x00 // push inline serialized value
	OpPop        Opcode = 0x01 // discard top of stack
	OpGet        Opcode = 0x02 // push local slot (32-bit index)
	OpDefGlobal  Opcode = 0x03 // pop into the next global slot
	OpGetGlobal  Opcode = 0x04 // push global slot (32-bit index)
	OpJmp        Opcode = 0x05 // unconditional jump (32-bit absolute pc)
	OpJmpIf      Opcode = 0x06 // pop, jump if true (32-bit absolute pc)
	OpCall       Opcode = 0x07 // call callee on top of stack (32-bit arity)
	OpReturn     Opcode = 0x08 // return top of stack to caller
	OpMakeLambda Opcode = 0x09 // build closure (32-bit entry pc, arity, capture count)
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // fixed operand bytes (-1 = inline value)
	StackEffect  int    // net effect on stack (-99 = variable)
}

const variableEffect = -99

var opcodeTable = map[Opcode]OpcodeInfo{
	OpPush:       {"PUSH", -1, 1},
	OpPop:        {"POP", 0, -1},
	OpGet:        {"GET", 4, 1},
	OpDefGlobal:  {"DEF_GLOBAL", 0, -1},
	OpGetGlobal:  {"GET_GLOBAL", 4, 1},
	OpJmp:        {"JMP", 4, 0},
	OpJmpIf:      {"JMP_IF", 4, -1},
	OpCall:       {"CALL", 4, variableEffect}, // pops callee + argc, pushes 1
	OpReturn:     {"RETURN", 0, variableEffect},
	OpMakeLambda: {"MAKE_LAMBDA", 12, variableEffect}, // pops captures, pushes 1
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// IsJump reports whether op carries an absolute jump target.
func (op Opcode) IsJump() bool {
	return op == OpJmp || op == OpJmpIf
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instr is one decoded instruction. Operand fields that an opcode does not
// use are zero.
type Instr struct {
	Op       Opcode
	Value    Value // OpPush
	Index    int32 // OpGet, OpGetGlobal
	Target   int32 // OpJmp, OpJmpIf, OpMakeLambda (entry pc)
	Arity    int32 // OpCall, OpMakeLambda
	Captures int32 // OpMakeLambda
}

// Instruction constructors.
func Push(v Value) Instr       { return Instr{Op: OpPush, Value: v} }
func Pop() Instr               { return Instr{Op: OpPop} }
func Get(slot int) Instr       { return Instr{Op: OpGet, Index: int32(slot)} }
func DefGlobal() Instr         { return Instr{Op: OpDefGlobal} }
func GetGlobal(slot int) Instr { return Instr{Op: OpGetGlobal, Index: int32(slot)} }
func Jmp(pc int) Instr         { return Instr{Op: OpJmp, Target: int32(pc)} }
func JmpIf(pc int) Instr       { return Instr{Op: OpJmpIf, Target: int32(pc)} }
func Call(arity int) Instr     { return Instr{Op: OpCall, Arity: int32(arity)} }
func Return() Instr            { return Instr{Op: OpReturn} }
func MakeLambda(entry, arity, captures int) Instr {
	return Instr{Op: OpMakeLambda, Target: int32(entry), Arity: int32(arity), Captures: int32(captures)}
}

// Size returns the encoded size of the instruction, opcode byte included.
func (in Instr) Size() int {
	if in.Op == OpPush {
		return 1 + EncodedSize(in.Value)
	}
	return 1 + in.Op.Info().OperandBytes
}

// Equal compares two instructions field by field.
func (in Instr) Equal(other Instr) bool {
	if in.Op != other.Op || in.Index != other.Index || in.Target != other.Target ||
		in.Arity != other.Arity || in.Captures != other.Captures {
		return false
	}
	if in.Value == nil || other.Value == nil {
		return in.Value == nil && other.Value == nil
	}
	return Equal(in.Value, other.Value)
}

func (in Instr) String() string {
	switch in.Op {
	case OpPush:
		return fmt.Sprintf("%s %s", in.Op, in.Value)
	case OpGet, OpGetGlobal:
		return fmt.Sprintf("%s %d", in.Op, in.Index)
	case OpJmp, OpJmpIf:
		return fmt.Sprintf("%s -> %04d", in.Op, in.Target)
	case OpCall:
		return fmt.Sprintf("%s %d", in.Op, in.Arity)
	case OpMakeLambda:
		return fmt.Sprintf("%s entry=%04d arity=%d captures=%d", in.Op, in.Target, in.Arity, in.Captures)
	default:
		return in.Op.String()
	}
}

// AppendInstr appends the encoding of in to buf and returns the extended
// buffer along with the number of bytes written.
func AppendInstr(buf []byte, in Instr) ([]byte, int) {
	start := len(buf)
	buf = append(buf, byte(in.Op))
	switch in.Op {
	case OpPush:
		buf = AppendValue(buf, in.Value)
	case OpPop, OpDefGlobal, OpReturn:
	case OpGet, OpGetGlobal:
		buf = appendInt32(buf, in.Index)
	case OpJmp, OpJmpIf:
		buf = appendInt32(buf, in.Target)
	case OpCall:
		buf = appendInt32(buf, in.Arity)
	case OpMakeLambda:
		buf = appendInt32(buf, in.Target)
		buf = appendInt32(buf, in.Arity)
		buf = appendInt32(buf, in.Captures)
	default:
		panic(fmt.Sprintf("vm: cannot encode opcode %s", in.Op))
	}
	return buf, len(buf) - start
}

// ReadInstr decodes the instruction at code[offset] and reports how many
// bytes it occupied.
func ReadInstr(code []byte, offset int) (Instr, int, error) {
	if offset < 0 || offset >= len(code) {
		return Instr{}, 0, decodeErrorf(offset, "instruction offset out of range")
	}
	op := Opcode(code[offset])
	if !op.Valid() {
		return Instr{}, 0, decodeErrorf(offset, "unknown opcode 0x%02X", byte(op))
	}
	in := Instr{Op: op}
	if op == OpPush {
		v, n, err := DecodeValue(code, offset+1)
		if err != nil {
			return Instr{}, 0, err
		}
		in.Value = v
		return in, 1 + n, nil
	}

	size := 1 + op.Info().OperandBytes
	if offset+size > len(code) {
		return Instr{}, 0, decodeErrorf(offset, "truncated %s operands", op)
	}
	operand := func(i int) int32 {
		return int32(binary.BigEndian.Uint32(code[offset+1+4*i:]))
	}
	switch op {
	case OpGet, OpGetGlobal:
		in.Index = operand(0)
	case OpJmp, OpJmpIf:
		in.Target = operand(0)
	case OpCall:
		in.Arity = operand(0)
	case OpMakeLambda:
		in.Target = operand(0)
		in.Arity = operand(1)
		in.Captures = operand(2)
	}
	return in, size, nil
}

func appendInt32(buf []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(v))
}

// ---------------------------------------------------------------------------
// Builder: helper for constructing bytecode
// ---------------------------------------------------------------------------

// Builder accumulates an instruction stream.
type Builder struct {
	bytes []byte
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{bytes: make([]byte, 0, 64)}
}

// Bytes returns the constructed bytecode.
func (b *Builder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length, which is also the offset of the next
// instruction.
func (b *Builder) Len() int {
	return len(b.bytes)
}

// Emit appends an instruction and returns its offset and size.
func (b *Builder) Emit(in Instr) (offset, size int) {
	offset = len(b.bytes)
	b.bytes, size = AppendInstr(b.bytes, in)
	return offset, size
}

// EmitJump emits a jump with a placeholder target and returns the offset of
// the 4-byte target field for PatchJump.
func (b *Builder) EmitJump(op Opcode) int {
	if !op.IsJump() {
		panic(fmt.Sprintf("vm: %s is not a jump", op))
	}
	offset, _ := b.Emit(Instr{Op: op, Target: -1})
	return offset + 1
}

// PatchJump backfills the target field at site with an absolute offset.
func (b *Builder) PatchJump(site, target int) {
	binary.BigEndian.PutUint32(b.bytes[site:], uint32(int32(target)))
}

// Truncate discards everything emitted at or after offset n.
func (b *Builder) Truncate(n int) {
	b.bytes = b.bytes[:n]
}
