package common

import "errors"

var ErrModulePaused = Mark(ClassState, errors.New("module paused"))

// PauseView exposes the pause switches of the components a module depends on.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when p reports module as paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseSet combines several views; a module is paused when any view says so.
type PauseSet []PauseView

// IsPaused reports whether any member view has module paused.
func (s PauseSet) IsPaused(module string) bool {
	for _, view := range s {
		if view != nil && view.IsPaused(module) {
			return true
		}
	}
	return false
}

// ErrReentrantCall is returned when a guarded section is entered twice.
var ErrReentrantCall = Mark(ClassState, errors.New("reentrant call"))

// ReentrancyGuard rejects nested entry into payout paths.
type ReentrancyGuard struct {
	entered bool
}

// Enter marks the guarded section busy, failing if it already is.
func (g *ReentrancyGuard) Enter() error {
	if g.entered {
		return ErrReentrantCall
	}
	g.entered = true
	return nil
}

// Exit releases the guard.
func (g *ReentrancyGuard) Exit() {
	g.entered = false
}
