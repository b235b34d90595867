package hotkeys

import (
	"log/slog"
	"sync"
)

// Mode holds the single active operating mode.
//
// A Mode created without an initial name stays unset forever: TransitionTo
// can change an existing mode but never establish the first one.
type Mode struct {
	mu   sync.RWMutex
	name string
	set  bool
}

// NewMode returns the mode state. An empty initial means "no mode".
func NewMode(initial string) *Mode {
	return &Mode{name: initial, set: initial != ""}
}

// Current returns the active mode and whether one is set.
func (m *Mode) Current() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name, m.set
}

// TransitionTo switches to name when a mode is already set.
// It returns false when the request was ignored.
func (m *Mode) TransitionTo(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		slog.Debug("[DEBUG-MODE] no initial mode configured, ignoring change_mode", "requested", name)
		return false
	}
	m.name = name
	return true
}
