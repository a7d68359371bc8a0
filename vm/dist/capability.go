package dist

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chazu/lamb/vm"
)

// CapOutput is required by bundles that reference display.
const CapOutput = "Output"

// ErrCapability is returned when a bundle needs a capability the policy
// refuses.
var ErrCapability = errors.New("dist: capability not allowed")

// builtinCapabilities maps side-effecting builtins to the capability they
// need.
var builtinCapabilities = map[string]string{
	"display": CapOutput,
}

// RequiredCapabilities scans code for references to side-effecting
// builtins and returns the capabilities they need, sorted.
func RequiredCapabilities(code []byte, globals []string) ([]string, error) {
	instrs, err := vm.DecodeAll(code)
	if err != nil {
		return nil, err
	}
	npredef := len(vm.PredefinedNames())
	set := make(map[string]bool)
	for _, li := range instrs {
		if li.Instr.Op != vm.OpGetGlobal {
			continue
		}
		idx := int(li.Instr.Index)
		if idx < 0 || idx >= npredef || idx >= len(globals) {
			continue
		}
		if c, ok := builtinCapabilities[globals[idx]]; ok {
			set[c] = true
		}
	}
	caps := make([]string, 0, len(set))
	for c := range set {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	return caps, nil
}

// CapabilityPolicy controls which capabilities a bundle may use when it is
// executed. A nil AllowedCapabilities means "allow all".
type CapabilityPolicy struct {
	AllowedCapabilities map[string]bool // nil = allow all
	DeniedCapabilities  map[string]bool
}

// NewPermissivePolicy creates a policy that allows all capabilities.
func NewPermissivePolicy() *CapabilityPolicy {
	return &CapabilityPolicy{}
}

// NewRestrictedPolicy creates a policy that only allows the specified
// capabilities.
func NewRestrictedPolicy(allowed []string) *CapabilityPolicy {
	m := make(map[string]bool, len(allowed))
	for _, c := range allowed {
		m[c] = true
	}
	return &CapabilityPolicy{AllowedCapabilities: m}
}

// Check verifies that all capabilities a bundle requires are allowed by
// this policy. A nil bundle is allowed.
func (p *CapabilityPolicy) Check(b *Bundle) error {
	if b == nil {
		return nil
	}
	for _, c := range b.Capabilities {
		if p.DeniedCapabilities != nil && p.DeniedCapabilities[c] {
			return fmt.Errorf("%w: %q is explicitly denied", ErrCapability, c)
		}
		if p.AllowedCapabilities != nil && !p.AllowedCapabilities[c] {
			return fmt.Errorf("%w: %q is not in the allowed set", ErrCapability, c)
		}
	}
	return nil
}

// Deny adds a capability to the deny list.
func (p *CapabilityPolicy) Deny(c string) {
	if p.DeniedCapabilities == nil {
		p.DeniedCapabilities = make(map[string]bool)
	}
	p.DeniedCapabilities[c] = true
}
