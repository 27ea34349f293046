package governance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"solaire/core/events"
	"solaire/native/access"
	nativecommon "solaire/native/common"
)

const moduleName = "governance"

var (
	ErrUnknownProxy       = nativecommon.Mark(nativecommon.ClassState, errors.New("governance: unknown proxy"))
	ErrProxyExists        = nativecommon.Mark(nativecommon.ClassState, errors.New("governance: proxy already registered"))
	ErrInvalidImpl        = nativecommon.Mark(nativecommon.ClassValue, errors.New("governance: implementation identifier required"))
	ErrUpgradePending     = nativecommon.Mark(nativecommon.ClassState, errors.New("governance: upgrade already pending"))
	ErrNoPendingUpgrade   = nativecommon.Mark(nativecommon.ClassState, errors.New("governance: no pending upgrade"))
	ErrTimelockNotExpired = nativecommon.Mark(nativecommon.ClassState, errors.New("governance: timelock not expired"))
	ErrAlreadyPaused      = nativecommon.Mark(nativecommon.ClassState, errors.New("governance: already paused"))
	ErrNotPaused          = nativecommon.Mark(nativecommon.ClassState, errors.New("governance: not paused"))
	ErrInvalidTimelock    = nativecommon.Mark(nativecommon.ClassValue, errors.New("governance: timelock must not be negative"))
	errStateNotConfigured = errors.New("governance: state not configured")
)

// Policy is the role each controller operation requires.
var Policy = access.Policy{
	"registerProxy":  access.RoleAdmin,
	"requestUpgrade": access.RoleUpgrader,
	"approveUpgrade": access.RoleAdmin,
	"pause":          access.RolePauser,
	"unpause":        access.RolePauser,
}

var (
	proxyPrefix  = []byte("governance/proxy/")
	proxyListKey = []byte("governance/proxies")
	pausedKey    = []byte("governance/paused")
)

type controllerState interface {
	access.State
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Controller gates upgrades of registered proxies behind a role check and a
// timelock, and owns the global pause switch other components consult.
type Controller struct {
	state    controllerState
	roles    *access.Table
	emitter  events.Emitter
	nowFn    func() time.Time
	timelock time.Duration
}

// NewController constructs a controller with the default timelock.
func NewController() *Controller {
	return &Controller{
		roles:    access.NewTable(moduleName, Policy),
		emitter:  events.NoopEmitter{},
		nowFn:    func() time.Time { return time.Now().UTC() },
		timelock: DefaultTimelock,
	}
}

// SetState attaches the state backend that stores proxies and the pause flag.
func (c *Controller) SetState(state controllerState) {
	c.state = state
	c.roles.SetState(state)
}

// SetEmitter configures the event emitter. Nil resets to a no-op emitter.
func (c *Controller) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	c.emitter = emitter
	c.roles.SetEmitter(emitter)
}

// SetNowFunc overrides the clock. Nil restores the default UTC clock.
func (c *Controller) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	c.nowFn = now
}

// SetTimelock overrides the upgrade delay. Zero lets approvals follow
// requests immediately.
func (c *Controller) SetTimelock(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimelock, d)
	}
	c.timelock = d
	return nil
}

// Timelock returns the configured upgrade delay.
func (c *Controller) Timelock() time.Duration { return c.timelock }

// Roles exposes the governance role table.
func (c *Controller) Roles() *access.Table { return c.roles }

func (c *Controller) now() time.Time { return c.nowFn() }

func (c *Controller) emit(evt events.Event) {
	if c.emitter != nil {
		c.emitter.Emit(evt)
	}
}

func proxyKey(id string) []byte {
	return append(append([]byte(nil), proxyPrefix...), id...)
}

func normaliseID(raw string) string {
	return strings.TrimSpace(raw)
}

func (c *Controller) load(id string) (*proxyRecord, error) {
	if c.state == nil {
		return nil, errStateNotConfigured
	}
	rec := new(proxyRecord)
	ok, err := c.state.KVGet(proxyKey(id), rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProxy, id)
	}
	return rec, nil
}

// IsPaused implements nativecommon.PauseView. The controller's switch is
// global so module is ignored.
func (c *Controller) IsPaused(string) bool {
	return c.Paused()
}

// Paused reports the global pause flag.
func (c *Controller) Paused() bool {
	if c == nil || c.state == nil {
		return false
	}
	var paused bool
	ok, err := c.state.KVGet(pausedKey, &paused)
	return err == nil && ok && paused
}

func (c *Controller) guard() error {
	if c.state == nil {
		return errStateNotConfigured
	}
	if c.Paused() {
		return fmt.Errorf("%s: %w", moduleName, nativecommon.ErrModulePaused)
	}
	return nil
}

// RegisterProxy records a new upgradeable component pointing at implementation.
func (c *Controller) RegisterProxy(caller [20]byte, proxyID, implementation string) error {
	if c.state == nil {
		return errStateNotConfigured
	}
	if err := c.roles.Authorize("registerProxy", caller); err != nil {
		return err
	}
	id := normaliseID(proxyID)
	impl := normaliseID(implementation)
	if id == "" || impl == "" {
		return ErrInvalidImpl
	}
	exists, err := c.state.KVGet(proxyKey(id), nil)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrProxyExists, id)
	}
	rec := &proxyRecord{ID: id, Implementation: impl, Version: 1}
	if err := c.state.KVPut(proxyKey(id), rec); err != nil {
		return err
	}
	if err := c.state.KVAppend(proxyListKey, []byte(id)); err != nil {
		return err
	}
	c.emit(events.ProxyRegistered{ProxyID: id, Implementation: impl})
	return nil
}

// RequestUpgrade starts the timelock for moving proxyID to implementation.
// Only one request per proxy may be outstanding.
func (c *Controller) RequestUpgrade(caller [20]byte, proxyID, implementation string) error {
	if err := c.guard(); err != nil {
		return err
	}
	if err := c.roles.Authorize("requestUpgrade", caller); err != nil {
		return err
	}
	impl := normaliseID(implementation)
	if impl == "" {
		return ErrInvalidImpl
	}
	id := normaliseID(proxyID)
	rec, err := c.load(id)
	if err != nil {
		return err
	}
	if rec.HasPending {
		return fmt.Errorf("%w: %s", ErrUpgradePending, id)
	}
	now := c.now()
	rec.HasPending = true
	rec.PendingImpl = impl
	rec.RequestedAt = uint64(now.Unix())
	if err := c.state.KVPut(proxyKey(id), rec); err != nil {
		return err
	}
	c.emit(events.UpgradeRequested{ProxyID: id, Implementation: impl, RequestedAt: time.Unix(now.Unix(), 0).UTC()})
	return nil
}

// ApproveUpgrade swaps the proxy's implementation once now >= requestedAt +
// timelock. Only the implementation pointer changes.
func (c *Controller) ApproveUpgrade(caller [20]byte, proxyID string) error {
	if err := c.guard(); err != nil {
		return err
	}
	if err := c.roles.Authorize("approveUpgrade", caller); err != nil {
		return err
	}
	id := normaliseID(proxyID)
	rec, err := c.load(id)
	if err != nil {
		return err
	}
	if !rec.HasPending {
		return fmt.Errorf("%w: %s", ErrNoPendingUpgrade, id)
	}
	readyAt := time.Unix(int64(rec.RequestedAt), 0).Add(c.timelock)
	if c.now().Before(readyAt) {
		return fmt.Errorf("%w: ready at %s", ErrTimelockNotExpired, readyAt.UTC().Format(time.RFC3339))
	}
	impl := rec.PendingImpl
	rec.Implementation = impl
	rec.Version++
	rec.HasPending = false
	rec.PendingImpl = ""
	rec.RequestedAt = 0
	if err := c.state.KVPut(proxyKey(id), rec); err != nil {
		return err
	}
	c.emit(events.UpgradeApproved{ProxyID: id, Implementation: impl})
	return nil
}

// Proxy returns the current view of a registered proxy.
func (c *Controller) Proxy(proxyID string) (*Proxy, error) {
	rec, err := c.load(normaliseID(proxyID))
	if err != nil {
		return nil, err
	}
	return rec.toProxy(), nil
}

// Implementation resolves the implementation a proxy currently points at.
func (c *Controller) Implementation(proxyID string) (string, error) {
	rec, err := c.load(normaliseID(proxyID))
	if err != nil {
		return "", err
	}
	return rec.Implementation, nil
}

// Proxies lists every registered proxy id in registration order.
func (c *Controller) Proxies() ([]string, error) {
	if c.state == nil {
		return nil, errStateNotConfigured
	}
	var raw [][]byte
	if err := c.state.KVGetList(proxyListKey, &raw); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		out = append(out, string(id))
	}
	return out, nil
}

// Pause engages the global pause switch.
func (c *Controller) Pause(caller [20]byte) error {
	return c.setPaused(caller, "pause", true)
}

// Unpause releases the global pause switch.
func (c *Controller) Unpause(caller [20]byte) error {
	return c.setPaused(caller, "unpause", false)
}

func (c *Controller) setPaused(caller [20]byte, op string, paused bool) error {
	if c.state == nil {
		return errStateNotConfigured
	}
	if err := c.roles.Authorize(op, caller); err != nil {
		return err
	}
	current := c.Paused()
	if paused && current {
		return ErrAlreadyPaused
	}
	if !paused && !current {
		return ErrNotPaused
	}
	if err := c.state.KVPut(pausedKey, paused); err != nil {
		return err
	}
	if paused {
		c.emit(events.Paused{Module: moduleName, Account: caller})
	} else {
		c.emit(events.Unpaused{Module: moduleName, Account: caller})
	}
	return nil
}
