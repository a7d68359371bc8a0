package vm

import (
	"errors"
	"strings"
	"testing"
)

func TestDisassemble(t *testing.T) {
	code := assemble(
		Push(Int(2)),
		Push(Int(3)),
		GetGlobal(0),
		Call(2),
		JmpIf(30),
		MakeLambda(5, 1, 0),
		Pop(),
	)
	listing, err := Disassemble(code, PredefinedNames())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"0000  PUSH 2",
		"0006  PUSH 3",
		"0012  GET_GLOBAL 0  ; +",
		"0017  CALL 2",
		"0022  JMP_IF -> 0030",
		"0027  MAKE_LAMBDA entry=0005 arity=1 captures=0",
		"0040  POP",
	}
	lines := strings.Split(strings.TrimSuffix(listing, "\n"), "\n")
	if len(lines) != len(want) {
		t.Fatalf("listing has %d lines, want %d:\n%s", len(lines), len(want), listing)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDisassembleWithoutNames(t *testing.T) {
	listing, err := Disassemble(assemble(GetGlobal(12)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(listing, ";") {
		t.Errorf("listing annotated without a name table: %q", listing)
	}
}

func TestDisassemblePartial(t *testing.T) {
	code := append(assemble(Push(Int(1))), 0x55)
	listing, err := Disassemble(code, nil)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if !strings.Contains(listing, "0000  PUSH 1") {
		t.Errorf("partial listing missing decoded prefix: %q", listing)
	}
}
