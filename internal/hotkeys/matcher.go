package hotkeys

import (
	"slices"

	"bindkeys/internal/keys"
)

// Evaluate returns every binding satisfied by the held keys, in declaration order.
//
// A binding is satisfied when all of its keys are in snapshot; extra held
// keys do not disqualify it. A mode-scoped binding additionally requires
// modeSet and an equal mode. Overlapping bindings all match.
func Evaluate(bindings []Binding, snapshot []keys.Code, mode string, modeSet bool) []Binding {
	var matched []Binding
	for _, b := range bindings {
		if !keysHeld(b.keys, snapshot) {
			continue
		}
		if want, scoped := b.Mode(); scoped && (!modeSet || want != mode) {
			continue
		}
		matched = append(matched, b)
	}
	return matched
}

func keysHeld(required, snapshot []keys.Code) bool {
	found := 0
	for _, code := range required {
		if slices.Contains(snapshot, code) {
			found++
		}
	}
	return len(required) > 0 && found == len(required)
}
