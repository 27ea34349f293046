package governance

import "time"

// DefaultTimelock is the minimum wait between an upgrade request and its approval.
const DefaultTimelock = 48 * time.Hour

// UpgradeStatus describes where a proxy sits in the upgrade lifecycle.
type UpgradeStatus uint8

const (
	UpgradeStatusIdle UpgradeStatus = iota
	UpgradeStatusPending
)

// StatusString renders the status for logs and APIs.
func (s UpgradeStatus) StatusString() string {
	switch s {
	case UpgradeStatusIdle:
		return "idle"
	case UpgradeStatusPending:
		return "pending"
	default:
		return "unspecified"
	}
}

// UpgradeRequest is a proposed implementation waiting out the timelock.
type UpgradeRequest struct {
	Implementation string
	RequestedAt    time.Time
}

// Proxy is an upgradeable component and the implementation it resolves to.
type Proxy struct {
	ID             string
	Implementation string
	Version        uint64
	Pending        *UpgradeRequest
}

// Status reports the proxy's lifecycle state.
func (p *Proxy) Status() UpgradeStatus {
	if p == nil || p.Pending == nil {
		return UpgradeStatusIdle
	}
	return UpgradeStatusPending
}

// ReadyAt returns when the pending request may be approved.
func (p *Proxy) ReadyAt(timelock time.Duration) time.Time {
	if p == nil || p.Pending == nil {
		return time.Time{}
	}
	return p.Pending.RequestedAt.Add(timelock)
}

type proxyRecord struct {
	ID             string
	Implementation string
	Version        uint64
	HasPending     bool
	PendingImpl    string
	RequestedAt    uint64
}

func (r *proxyRecord) toProxy() *Proxy {
	p := &Proxy{ID: r.ID, Implementation: r.Implementation, Version: r.Version}
	if r.HasPending {
		p.Pending = &UpgradeRequest{
			Implementation: r.PendingImpl,
			RequestedAt:    time.Unix(int64(r.RequestedAt), 0).UTC(),
		}
	}
	return p
}
