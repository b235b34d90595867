package hotkeys

import "testing"

func TestModeTransition(t *testing.T) {
	tests := []struct {
		name     string
		initial  string
		target   string
		wantOK   bool
		wantMode string
		wantSet  bool
	}{
		{name: "no initial mode ignores change", initial: "", target: "game", wantOK: false, wantMode: "", wantSet: false},
		{name: "configured mode changes", initial: "normal", target: "game", wantOK: true, wantMode: "game", wantSet: true},
		{name: "same mode is accepted", initial: "normal", target: "normal", wantOK: true, wantMode: "normal", wantSet: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMode(tt.initial)
			if got := m.TransitionTo(tt.target); got != tt.wantOK {
				t.Fatalf("TransitionTo(%q) = %v, want %v", tt.target, got, tt.wantOK)
			}
			name, set := m.Current()
			if name != tt.wantMode || set != tt.wantSet {
				t.Fatalf("Current() = %q, %v, want %q, %v", name, set, tt.wantMode, tt.wantSet)
			}
		})
	}
}

func TestModeTransitionChain(t *testing.T) {
	m := NewMode("normal")
	for _, next := range []string{"game", "work", "normal"} {
		if !m.TransitionTo(next) {
			t.Fatalf("TransitionTo(%q) = false", next)
		}
		if got, _ := m.Current(); got != next {
			t.Fatalf("Current() = %q, want %q", got, next)
		}
	}
}
