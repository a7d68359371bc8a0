package vm

import (
	"fmt"
	"strings"
)

// Located is an instruction together with its offset in the stream.
type Located struct {
	Offset int
	Size   int
	Instr  Instr
}

// DecodeAll walks code from offset 0, one instruction at a time.
func DecodeAll(code []byte) ([]Located, error) {
	var out []Located
	for offset := 0; offset < len(code); {
		in, n, err := ReadInstr(code, offset)
		if err != nil {
			return out, err
		}
		out = append(out, Located{Offset: offset, Size: n, Instr: in})
		offset += n
	}
	return out, nil
}

// Disassemble returns a human-readable listing of code. globals, when
// non-nil, names global slots in the listing.
func Disassemble(code []byte, globals []string) (string, error) {
	instrs, err := DecodeAll(code)

	var sb strings.Builder
	for _, li := range instrs {
		fmt.Fprintf(&sb, "%04d  %s", li.Offset, li.Instr)
		if li.Instr.Op == OpGetGlobal && int(li.Instr.Index) < len(globals) && li.Instr.Index >= 0 {
			fmt.Fprintf(&sb, "  ; %s", globals[li.Instr.Index])
		}
		sb.WriteString("\n")
	}
	return sb.String(), err
}
