package events

import (
	"time"

	"solaire/core/types"
)

const (
	TypeProxyRegistered  = "governance.proxy_registered"
	TypeUpgradeRequested = "governance.upgrade_requested"
	TypeUpgradeApproved  = "governance.upgrade_approved"
	TypePaused           = "pause.paused"
	TypeUnpaused         = "pause.unpaused"
)

// ProxyRegistered records a new upgradeable component.
type ProxyRegistered struct {
	ProxyID        string
	Implementation string
}

func (ProxyRegistered) EventType() string { return TypeProxyRegistered }

func (e ProxyRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeProxyRegistered,
		Attributes: map[string]string{
			"proxyId":        e.ProxyID,
			"implementation": e.Implementation,
		},
	}
}

// UpgradeRequested starts a proxy's timelock.
type UpgradeRequested struct {
	ProxyID        string
	Implementation string
	RequestedAt    time.Time
}

func (UpgradeRequested) EventType() string { return TypeUpgradeRequested }

func (e UpgradeRequested) Event() *types.Event {
	return &types.Event{
		Type: TypeUpgradeRequested,
		Attributes: map[string]string{
			"proxyId":        e.ProxyID,
			"implementation": e.Implementation,
			"timestamp":      unixString(e.RequestedAt),
		},
	}
}

// UpgradeApproved is emitted once a proxy points at its new implementation.
type UpgradeApproved struct {
	ProxyID        string
	Implementation string
}

func (UpgradeApproved) EventType() string { return TypeUpgradeApproved }

func (e UpgradeApproved) Event() *types.Event {
	return &types.Event{
		Type: TypeUpgradeApproved,
		Attributes: map[string]string{
			"proxyId":        e.ProxyID,
			"implementation": e.Implementation,
		},
	}
}

// Paused is emitted when a component's pause switch is engaged.
type Paused struct {
	Module  string
	Account [20]byte
}

func (Paused) EventType() string { return TypePaused }

func (e Paused) Event() *types.Event {
	return &types.Event{
		Type: TypePaused,
		Attributes: map[string]string{
			"module":  e.Module,
			"account": addressString(e.Account),
		},
	}
}

// Unpaused is emitted when a component's pause switch is released.
type Unpaused struct {
	Module  string
	Account [20]byte
}

func (Unpaused) EventType() string { return TypeUnpaused }

func (e Unpaused) Event() *types.Event {
	return &types.Event{
		Type: TypeUnpaused,
		Attributes: map[string]string{
			"module":  e.Module,
			"account": addressString(e.Account),
		},
	}
}
