package access

import (
	"errors"
	"fmt"
	"strings"

	"solaire/core/events"
	nativecommon "solaire/native/common"
)

// Role names shared by every component.
const (
	RoleAdmin             = "admin"
	RoleUpgrader          = "upgrader"
	RolePauser            = "pauser"
	RoleCompliance        = "compliance"
	RoleMinter            = "minter"
	RoleBurner            = "burner"
	RoleCollateralManager = "collateral_manager"
)

var (
	ErrUnauthorized        = nativecommon.Mark(nativecommon.ClassAuthorization, errors.New("access: caller lacks required role"))
	ErrUnknownOperation    = nativecommon.Mark(nativecommon.ClassInternal, errors.New("access: operation has no policy"))
	ErrAlreadyBootstrapped = nativecommon.Mark(nativecommon.ClassState, errors.New("access: scope already has an admin"))
	errStateNotConfigured  = errors.New("access: state not configured")
)

// State is the role storage the table persists through.
type State interface {
	SetRole(role string, addr []byte) error
	RemoveRole(role string, addr []byte) error
	HasRole(role string, addr []byte) bool
	RoleMembers(role string) ([][]byte, error)
}

// Policy names the role each operation of a component requires.
type Policy map[string]string

// Table is the role capability table of a single component scope.
type Table struct {
	scope   string
	state   State
	policy  Policy
	emitter events.Emitter
}

// NewTable creates a table for scope with the supplied operation policy.
func NewTable(scope string, policy Policy) *Table {
	return &Table{
		scope:   strings.TrimSpace(scope),
		policy:  policy,
		emitter: events.NoopEmitter{},
	}
}

// SetState attaches the role store.
func (t *Table) SetState(state State) { t.state = state }

// SetEmitter configures the sink for role changes.
func (t *Table) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

// Scope returns the component scope the table guards.
func (t *Table) Scope() string { return t.scope }

func (t *Table) key(role string) string {
	return t.scope + "/" + strings.TrimSpace(role)
}

// Has reports whether account holds role within the scope.
func (t *Table) Has(role string, account [20]byte) bool {
	if t == nil || t.state == nil {
		return false
	}
	return t.state.HasRole(t.key(role), account[:])
}

// Require fails with ErrUnauthorized when account does not hold role.
func (t *Table) Require(role string, account [20]byte) error {
	if t.state == nil {
		return errStateNotConfigured
	}
	if !t.Has(role, account) {
		return fmt.Errorf("%w: %s requires %s", ErrUnauthorized, t.scope, role)
	}
	return nil
}

// Authorize checks caller against the role the policy assigns to op.
func (t *Table) Authorize(op string, caller [20]byte) error {
	role, ok := t.policy[op]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownOperation, t.scope, op)
	}
	if err := t.Require(role, caller); err != nil {
		return fmt.Errorf("%s.%s: %w", t.scope, op, err)
	}
	return nil
}

// Members lists the holders of role.
func (t *Table) Members(role string) ([][20]byte, error) {
	if t.state == nil {
		return nil, errStateNotConfigured
	}
	raw, err := t.state.RoleMembers(t.key(role))
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, member := range raw {
		var addr [20]byte
		copy(addr[:], member)
		out = append(out, addr)
	}
	return out, nil
}

// Bootstrap grants the initial roles to deployer. It only succeeds while the
// scope has no admin.
func (t *Table) Bootstrap(deployer [20]byte, roles ...string) error {
	admins, err := t.Members(RoleAdmin)
	if err != nil {
		return err
	}
	if len(admins) > 0 {
		return ErrAlreadyBootstrapped
	}
	roles = append([]string{RoleAdmin}, roles...)
	for _, role := range roles {
		if err := t.grant(role, deployer, deployer); err != nil {
			return err
		}
	}
	return nil
}

// Grant adds role to account. Only admins may grant.
func (t *Table) Grant(caller [20]byte, role string, account [20]byte) error {
	if err := t.Require(RoleAdmin, caller); err != nil {
		return err
	}
	return t.grant(role, account, caller)
}

// Revoke removes role from account immediately. Only admins may revoke.
func (t *Table) Revoke(caller [20]byte, role string, account [20]byte) error {
	if err := t.Require(RoleAdmin, caller); err != nil {
		return err
	}
	return t.revoke(role, account, caller)
}

// Renounce lets a holder drop one of its own roles.
func (t *Table) Renounce(caller [20]byte, role string) error {
	if err := t.Require(role, caller); err != nil {
		return err
	}
	return t.revoke(role, caller, caller)
}

func (t *Table) grant(role string, account, sender [20]byte) error {
	if strings.TrimSpace(role) == "" {
		return fmt.Errorf("access: role must not be empty")
	}
	if account == ([20]byte{}) {
		return fmt.Errorf("access: cannot grant %s to the zero account", role)
	}
	if t.Has(role, account) {
		return nil
	}
	if err := t.state.SetRole(t.key(role), account[:]); err != nil {
		return err
	}
	t.emitter.Emit(events.RoleGranted{Scope: t.scope, Role: role, Account: account, Sender: sender})
	return nil
}

func (t *Table) revoke(role string, account, sender [20]byte) error {
	if !t.Has(role, account) {
		return nil
	}
	if err := t.state.RemoveRole(t.key(role), account[:]); err != nil {
		return err
	}
	t.emitter.Emit(events.RoleRevoked{Scope: t.scope, Role: role, Account: account, Sender: sender})
	return nil
}
