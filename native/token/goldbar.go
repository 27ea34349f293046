package token

import (
	"errors"
	"fmt"
	"strings"

	"solaire/core/events"
	nativecommon "solaire/native/common"
)

var (
	ErrInvalidPurity   = nativecommon.Mark(nativecommon.ClassValue, errors.New("token: invalid purity value"))
	ErrInvalidWeight   = nativecommon.Mark(nativecommon.ClassValue, errors.New("token: bar weight must be positive"))
	ErrInvalidSerial   = nativecommon.Mark(nativecommon.ClassValue, errors.New("token: bar serial required"))
	ErrDuplicateSerial = nativecommon.Mark(nativecommon.ClassState, errors.New("token: bar serial already registered"))
	ErrBarNotFound     = nativecommon.Mark(nativecommon.ClassState, errors.New("token: gold bar not found"))
	ErrBarInactive     = nativecommon.Mark(nativecommon.ClassState, errors.New("token: gold bar not active"))
)

func (e *Engine) requireBacked() error {
	if e.state == nil {
		return errStateNotConfigured
	}
	if e.kind != KindBacked {
		return fmt.Errorf("%w: %s is %s", ErrUnsupportedOperation, e.symbol, e.kind)
	}
	return nil
}

// AddGoldBar registers a new active bar and returns its id. Ids start at 1.
func (e *Engine) AddGoldBar(caller [20]byte, serial string, weight uint64, refinery string, purity uint64, location string) (uint64, error) {
	if err := e.requireBacked(); err != nil {
		return 0, err
	}
	if err := e.roles.Authorize("addGoldBar", caller); err != nil {
		return 0, err
	}
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return 0, ErrInvalidSerial
	}
	if weight == 0 {
		return 0, ErrInvalidWeight
	}
	if purity == 0 || purity > MaxPurity {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPurity, purity)
	}
	var existing uint64
	ok, err := e.state.KVGet(e.serialKey(serial), &existing)
	if err != nil {
		return 0, err
	}
	if ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
	}
	var seq uint64
	if _, err := e.state.KVGet(e.barSeqKey(), &seq); err != nil {
		return 0, err
	}
	seq++
	bar := &GoldBar{
		ID:       seq,
		Serial:   serial,
		Weight:   weight,
		Refinery: strings.TrimSpace(refinery),
		Purity:   purity,
		Location: strings.TrimSpace(location),
		Active:   true,
		AddedAt:  uint64(e.now().Unix()),
	}
	if err := e.state.KVPut(e.barKey(seq), bar); err != nil {
		return 0, err
	}
	if err := e.state.KVPut(e.serialKey(serial), seq); err != nil {
		return 0, err
	}
	if err := e.state.KVPut(e.barSeqKey(), seq); err != nil {
		return 0, err
	}
	e.emit(events.GoldBarAdded{Token: e.symbol, BarID: seq, Serial: serial, Weight: weight, Refinery: bar.Refinery})
	return seq, nil
}

// GoldBar returns the bar with id.
func (e *Engine) GoldBar(id uint64) (*GoldBar, error) {
	if err := e.requireBacked(); err != nil {
		return nil, err
	}
	bar := new(GoldBar)
	ok, err := e.state.KVGet(e.barKey(id), bar)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBarNotFound, id)
	}
	return bar, nil
}

// DeactivateGoldBar removes a bar from the active reserve. There is no way back.
func (e *Engine) DeactivateGoldBar(caller [20]byte, id uint64) error {
	if err := e.requireBacked(); err != nil {
		return err
	}
	if err := e.roles.Authorize("deactivateGoldBar", caller); err != nil {
		return err
	}
	bar, err := e.GoldBar(id)
	if err != nil {
		return err
	}
	if !bar.Active {
		return fmt.Errorf("%w: %d", ErrBarInactive, id)
	}
	bar.Active = false
	if err := e.state.KVPut(e.barKey(id), bar); err != nil {
		return err
	}
	e.emit(events.GoldBarDeactivated{Token: e.symbol, BarID: id})
	return nil
}

// AssignBarOwnership moves an active bar to owner, removing it from the
// previous owner's set first.
func (e *Engine) AssignBarOwnership(caller [20]byte, id uint64, owner [20]byte) error {
	if err := e.requireBacked(); err != nil {
		return err
	}
	if err := e.roles.Authorize("assignBarOwnership", caller); err != nil {
		return err
	}
	if owner == ([20]byte{}) {
		return ErrZeroAddress
	}
	bar, err := e.GoldBar(id)
	if err != nil {
		return err
	}
	if !bar.Active {
		return fmt.Errorf("%w: %d", ErrBarInactive, id)
	}
	previous := bar.Owner
	if previous != ([20]byte{}) {
		if err := e.state.KVRemove(e.ownedKey(previous), idBytes(id)); err != nil {
			return err
		}
	}
	bar.Owner = owner
	if err := e.state.KVPut(e.barKey(id), bar); err != nil {
		return err
	}
	if err := e.state.KVAppend(e.ownedKey(owner), idBytes(id)); err != nil {
		return err
	}
	e.emit(events.GoldBarOwnershipTransferred{Token: e.symbol, BarID: id, Previous: previous, Owner: owner})
	return nil
}

// BarOwner returns the current owner of a bar; zero when unassigned.
func (e *Engine) BarOwner(id uint64) ([20]byte, error) {
	bar, err := e.GoldBar(id)
	if err != nil {
		return [20]byte{}, err
	}
	return bar.Owner, nil
}

// OwnedBars lists the ids of the bars assigned to owner.
func (e *Engine) OwnedBars(owner [20]byte) ([]uint64, error) {
	if err := e.requireBacked(); err != nil {
		return nil, err
	}
	var raw [][]byte
	if err := e.state.KVGetList(e.ownedKey(owner), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, b := range raw {
		ids = append(ids, idFromBytes(b))
	}
	return ids, nil
}

// BarCount returns the number of bars ever registered.
func (e *Engine) BarCount() (uint64, error) {
	if err := e.requireBacked(); err != nil {
		return 0, err
	}
	var seq uint64
	_, err := e.state.KVGet(e.barSeqKey(), &seq)
	return seq, err
}

// ActiveReserveWeight sums the weight of all active bars.
func (e *Engine) ActiveReserveWeight() (uint64, error) {
	count, err := e.BarCount()
	if err != nil {
		return 0, err
	}
	var total uint64
	for id := uint64(1); id <= count; id++ {
		bar, err := e.GoldBar(id)
		if err != nil {
			return 0, err
		}
		if bar.Active {
			total += bar.Weight
		}
	}
	return total, nil
}
