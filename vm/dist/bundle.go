// Package dist implements the Lamb bundle: a compiled program wrapped in a
// CBOR envelope so it can be written to disk, cached, and executed later
// without the source.
package dist

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/chazu/lamb/vm"
)

// BundleVersion is the bundle format written by this package.
const BundleVersion uint8 = 1

var (
	ErrVersion      = errors.New("dist: unsupported bundle version")
	ErrHashMismatch = errors.New("dist: code hash mismatch")
	ErrGlobals      = errors.New("dist: global table does not match builtins")
	ErrBadTarget    = errors.New("dist: control transfer into the middle of an instruction")
)

// Bundle is the unit of distribution. Code is a complete instruction stream
// and Globals names its global slots, builtins first.
type Bundle struct {
	Version    uint8    `cbor:"1,keyasint"`
	SourceHash [32]byte `cbor:"2,keyasint"`
	CodeHash   [32]byte `cbor:"3,keyasint"`
	Code       []byte   `cbor:"4,keyasint"`
	Globals    []string `cbor:"5,keyasint"`

	// Capabilities lists what the code needs from its host, e.g. Output.
	Capabilities []string `cbor:"6,keyasint,omitempty"`
}

// HashSource returns the content address of a source text.
func HashSource(src []byte) [32]byte {
	return sha256.Sum256(src)
}

// NewBundle packages code compiled from src.
func NewBundle(src []byte, code []byte, globals []string) *Bundle {
	b := &Bundle{
		Version:    BundleVersion,
		SourceHash: HashSource(src),
		CodeHash:   sha256.Sum256(code),
		Code:       append([]byte(nil), code...),
		Globals:    append([]string(nil), globals...),
	}
	// Malformed code is reported by Verify.
	b.Capabilities, _ = RequiredCapabilities(b.Code, b.Globals)
	return b
}

// Verify checks that a bundle is safe to hand to the VM: the version is
// known, the code matches its hash, the global table starts with the
// builtins in VM order, every instruction decodes, every jump and lambda
// entry lands on an instruction boundary, and the declared capabilities
// match what the code uses.
func (b *Bundle) Verify() error {
	if b.Version != BundleVersion {
		return fmt.Errorf("%w: %d", ErrVersion, b.Version)
	}
	if sha256.Sum256(b.Code) != b.CodeHash {
		return ErrHashMismatch
	}
	names := vm.PredefinedNames()
	if len(b.Globals) < len(names) {
		return fmt.Errorf("%w: %d globals, want at least %d", ErrGlobals, len(b.Globals), len(names))
	}
	for i, name := range names {
		if b.Globals[i] != name {
			return fmt.Errorf("%w: slot %d is %q, want %q", ErrGlobals, i, b.Globals[i], name)
		}
	}
	if err := checkTargets(b.Code); err != nil {
		return err
	}
	caps, err := RequiredCapabilities(b.Code, b.Globals)
	if err != nil {
		return fmt.Errorf("dist: %w", err)
	}
	if !sameStrings(caps, b.Capabilities) {
		return fmt.Errorf("%w: declares %v, code needs %v", ErrCapability, b.Capabilities, caps)
	}
	return nil
}

// checkTargets requires every control transfer to land where the linear
// decode starts an instruction. Jumps may also target the end of the
// stream. Without this, bytes hidden in one instruction's operands could be
// executed while the linear scan never sees them.
func checkTargets(code []byte) error {
	instrs, err := vm.DecodeAll(code)
	if err != nil {
		return fmt.Errorf("dist: %w", err)
	}
	starts := make(map[int]bool, len(instrs))
	for _, li := range instrs {
		starts[li.Offset] = true
	}
	for _, li := range instrs {
		target := int(li.Instr.Target)
		switch {
		case li.Instr.Op.IsJump():
			if !starts[target] && target != len(code) {
				return fmt.Errorf("%w: %s at %04d", ErrBadTarget, li.Instr, li.Offset)
			}
		case li.Instr.Op == vm.OpMakeLambda:
			if !starts[target] {
				return fmt.Errorf("%w: %s at %04d", ErrBadTarget, li.Instr, li.Offset)
			}
		}
	}
	return nil
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Disassemble renders the bundle's code with global names resolved.
func (b *Bundle) Disassemble() (string, error) {
	return vm.Disassemble(b.Code, b.Globals)
}
