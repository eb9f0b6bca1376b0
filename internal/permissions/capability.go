package permissions

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCapability reports a capability name outside the known set.
var ErrUnknownCapability = errors.New("permissions: unknown capability")

// Capability is a playbook permission independent of playbook visibility.
type Capability string

const (
	CapabilityView             Capability = "playbook_view"
	CapabilityManageMembers    Capability = "playbook_manage_members"
	CapabilityManageRoles      Capability = "playbook_manage_roles"
	CapabilityManageProperties Capability = "playbook_manage_properties"
	CapabilityConvert          Capability = "playbook_convert"
	CapabilityRunCreate        Capability = "run_create"
)

var capabilities = []Capability{
	CapabilityView,
	CapabilityManageMembers,
	CapabilityManageRoles,
	CapabilityManageProperties,
	CapabilityConvert,
	CapabilityRunCreate,
}

// Capabilities lists every known capability in a stable order.
func Capabilities() []Capability {
	out := make([]Capability, len(capabilities))
	copy(out, capabilities)
	return out
}

// ParseCapability validates a capability name.
func ParseCapability(raw string) (Capability, error) {
	c := Capability(strings.TrimSpace(raw))
	for _, known := range capabilities {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCapability, raw)
}

// Specific returns the permission key that grants c on a playbook with the
// given visibility. Unknown capabilities map to "", which no role grants.
func Specific(c Capability, public bool) string {
	switch c {
	case CapabilityRunCreate:
		return string(c)
	case CapabilityConvert:
		if public {
			return "playbook_public_make_private"
		}
		return "playbook_private_make_public"
	case CapabilityView, CapabilityManageMembers, CapabilityManageRoles, CapabilityManageProperties:
		verb := strings.TrimPrefix(string(c), "playbook_")
		if public {
			return "playbook_public_" + verb
		}
		return "playbook_private_" + verb
	default:
		return ""
	}
}
