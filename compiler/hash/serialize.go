package hash

import (
	"encoding/binary"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of the frozen hashing AST.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int32=4B, uint16=2B, counts=4B)
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Child nodes: serialized inline (flat)
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of an HNode tree.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(node HNode) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.serializeNode(node)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) writeUint16(v uint16) {
	s.buf = binary.BigEndian.AppendUint16(s.buf, v)
}

func (s *serializer) writeUint32(v uint32) {
	s.buf = binary.BigEndian.AppendUint32(s.buf, v)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeNodes(nodes []HNode) {
	s.writeUint32(uint32(len(nodes)))
	for _, n := range nodes {
		s.serializeNode(n)
	}
}

func (s *serializer) serializeNode(node HNode) {
	switch n := node.(type) {
	case *HIntLiteral:
		s.writeByte(TagIntLiteral)
		s.writeUint32(uint32(n.Value))

	case *HBoolLiteral:
		s.writeByte(TagBoolLiteral)
		s.writeBool(n.Value)

	case *HLocalRef:
		s.writeByte(TagLocalRef)
		s.writeUint16(n.ScopeDepth)
		s.writeUint16(n.SlotIndex)

	case *HGlobalRef:
		s.writeByte(TagGlobalRef)
		s.writeString(n.Name)

	case *HIf:
		s.writeByte(TagIf)
		s.serializeNode(n.Cond)
		s.serializeNode(n.Then)
		s.writeBool(n.Else != nil)
		if n.Else != nil {
			s.serializeNode(n.Else)
		}

	case *HLambda:
		s.writeByte(TagLambda)
		s.writeUint32(uint32(n.Arity))
		s.serializeNode(n.Body)

	case *HCall:
		s.writeByte(TagCall)
		s.serializeNode(n.Callee)
		s.writeNodes(n.Args)

	case *HDefine:
		s.writeByte(TagDefine)
		s.writeString(n.Name)
		s.serializeNode(n.Value)

	case *HProgram:
		s.writeByte(TagProgram)
		s.writeNodes(n.Forms)
	}
}
