package events

import "solaire/core/types"

const (
	TypeRoleGranted = "access.role_granted"
	TypeRoleRevoked = "access.role_revoked"
)

// RoleGranted is emitted when an account gains a role within a scope.
type RoleGranted struct {
	Scope   string
	Role    string
	Account [20]byte
	Sender  [20]byte
}

func (RoleGranted) EventType() string { return TypeRoleGranted }

func (e RoleGranted) Event() *types.Event {
	return &types.Event{
		Type: TypeRoleGranted,
		Attributes: map[string]string{
			"scope":   e.Scope,
			"role":    e.Role,
			"account": addressString(e.Account),
			"sender":  addressString(e.Sender),
		},
	}
}

// RoleRevoked is emitted when an account loses a role within a scope.
type RoleRevoked struct {
	Scope   string
	Role    string
	Account [20]byte
	Sender  [20]byte
}

func (RoleRevoked) EventType() string { return TypeRoleRevoked }

func (e RoleRevoked) Event() *types.Event {
	return &types.Event{
		Type: TypeRoleRevoked,
		Attributes: map[string]string{
			"scope":   e.Scope,
			"role":    e.Role,
			"account": addressString(e.Account),
			"sender":  addressString(e.Sender),
		},
	}
}
