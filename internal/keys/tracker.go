// Package keys tracks which keys are currently held down on the input device.
package keys

import (
	"log/slog"
	"time"
)

const (
	// Capacity is the maximum number of simultaneously tracked keys.
	// Presses beyond this are dropped until a slot frees up.
	Capacity = 4

	// StaleAfter is how long a key may be held before the next press is
	// allowed to overwrite its slot. Releases lost by the kernel (device
	// unplugged mid-chord, VT switch) would otherwise pin a slot forever.
	StaleAfter = 20 * time.Second
)

// Code is a Linux evdev key code.
type Code uint16

// Pressed is a key held down since HeldSince.
type Pressed struct {
	Code      Code
	HeldSince time.Time
}

// slot is one position in the tracker. occupied=false marks an empty slot.
type slot struct {
	key      Pressed
	occupied bool
}

// Tracker is a fixed-capacity set of held keys.
// It is not safe for concurrent use; the daemon owns it on its event loop.
type Tracker struct {
	slots [Capacity]slot
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Press records code as held since ts.
//
// Slots held longer than StaleAfter relative to ts are evicted first, then
// code takes the first empty slot. If every slot holds a fresh key the
// press is dropped. A press for a code that is already tracked keeps the
// existing entry.
func (t *Tracker) Press(code Code, ts time.Time) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.occupied && ts.Sub(s.key.HeldSince) > StaleAfter {
			slog.Debug("[DEBUG-KEYS] evicting stale key",
				"code", s.key.Code, "heldFor", ts.Sub(s.key.HeldSince))
			*s = slot{}
		}
	}

	if t.Contains(code) {
		return
	}

	for i := range t.slots {
		if !t.slots[i].occupied {
			t.slots[i] = slot{key: Pressed{Code: code, HeldSince: ts}, occupied: true}
			return
		}
	}
	slog.Debug("[DEBUG-KEYS] tracker full, press dropped", "code", code)
}

// Release clears every slot holding code. Unknown codes are ignored.
func (t *Tracker) Release(code Code) {
	for i := range t.slots {
		if t.slots[i].occupied && t.slots[i].key.Code == code {
			t.slots[i] = slot{}
		}
	}
}

// Contains reports whether code currently occupies a slot.
func (t *Tracker) Contains(code Code) bool {
	for _, s := range t.slots {
		if s.occupied && s.key.Code == code {
			return true
		}
	}
	return false
}

// Snapshot returns the occupied codes in slot order.
func (t *Tracker) Snapshot() []Code {
	out := make([]Code, 0, Capacity)
	for _, s := range t.slots {
		if s.occupied {
			out = append(out, s.key.Code)
		}
	}
	return out
}

// Held returns a copy of the occupied slots in slot order.
func (t *Tracker) Held() []Pressed {
	out := make([]Pressed, 0, Capacity)
	for _, s := range t.slots {
		if s.occupied {
			out = append(out, s.key)
		}
	}
	return out
}

// Len returns the number of occupied slots.
func (t *Tracker) Len() int {
	n := 0
	for _, s := range t.slots {
		if s.occupied {
			n++
		}
	}
	return n
}
