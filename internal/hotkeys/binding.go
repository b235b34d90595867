// Package hotkeys holds the binding model, the key-combination matcher and
// the mode state that scopes which bindings may fire.
package hotkeys

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"bindkeys/internal/keys"
)

// BindingSpec is the raw input for NewBinding. Empty strings mean "absent".
type BindingSpec struct {
	// Index is the position of the binding in the config file (0-based).
	Index      int
	Name       string
	Keys       []keys.Code
	Mode       string
	Command    string
	ChangeMode string
	// Delay is nil when the binding executes immediately.
	Delay *time.Duration
}

// Binding describes one validated key-combination rule.
// Construct only via NewBinding to guarantee invariant consistency.
type Binding struct {
	index      int
	name       string
	keys       []keys.Code
	mode       string
	command    string
	changeMode string
	delay      time.Duration
	hasDelay   bool
}

// NewBinding validates spec and returns the binding.
// Duplicate key codes collapse; declaration order of the remaining codes is kept.
func NewBinding(spec BindingSpec) (Binding, error) {
	if len(spec.Keys) == 0 {
		return Binding{}, errors.New("binding has no keys")
	}
	if spec.Command == "" && spec.ChangeMode == "" {
		return Binding{}, errors.New("binding has neither command nor change_mode")
	}
	if spec.Delay != nil && *spec.Delay < 0 {
		return Binding{}, fmt.Errorf("binding delay must not be negative: %s", *spec.Delay)
	}

	codes := make([]keys.Code, 0, len(spec.Keys))
	for _, c := range spec.Keys {
		if !slices.Contains(codes, c) {
			codes = append(codes, c)
		}
	}

	b := Binding{
		index:      spec.Index,
		name:       spec.Name,
		keys:       codes,
		mode:       spec.Mode,
		command:    spec.Command,
		changeMode: spec.ChangeMode,
	}
	if spec.Delay != nil {
		b.delay = *spec.Delay
		b.hasDelay = true
	}
	return b, nil
}

// Index returns the binding's position in the config file.
func (b Binding) Index() int { return b.index }

// Keys returns a copy of the required key codes.
func (b Binding) Keys() []keys.Code { return slices.Clone(b.keys) }

// Mode returns the mode the binding is scoped to.
func (b Binding) Mode() (string, bool) { return b.mode, b.mode != "" }

// Command returns the shell command to run.
func (b Binding) Command() (string, bool) { return b.command, b.command != "" }

// ChangeMode returns the mode to switch to after a match.
func (b Binding) ChangeMode() (string, bool) { return b.changeMode, b.changeMode != "" }

// Delay returns the scheduling delay for the command.
func (b Binding) Delay() (time.Duration, bool) { return b.delay, b.hasDelay }

// Label is a short human-readable identifier for logs.
func (b Binding) Label() string {
	if b.name != "" {
		return b.name
	}
	return fmt.Sprintf("key_binds[%d]", b.index)
}
