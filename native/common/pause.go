package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a native module has been halted by policy.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the view marks the module as halted.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
