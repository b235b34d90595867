package hotkeys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holoplot/go-evdev"

	"bindkeys/internal/keys"
)

// keyAliases maps short names to evdev key names. Left-hand modifiers are
// preferred since the kernel reports left and right variants separately.
var keyAliases = map[string]string{
	"CTRL":    "KEY_LEFTCTRL",
	"CONTROL": "KEY_LEFTCTRL",
	"SHIFT":   "KEY_LEFTSHIFT",
	"ALT":     "KEY_LEFTALT",
	"SUPER":   "KEY_LEFTMETA",
	"WIN":     "KEY_LEFTMETA",
	"META":    "KEY_LEFTMETA",
	"ESCAPE":  "KEY_ESC",
	"RETURN":  "KEY_ENTER",
	"DEL":     "KEY_DELETE",
	"`":       "KEY_GRAVE",
}

// maxKeyCode is KEY_MAX in linux/input-event-codes.h.
const maxKeyCode = 0x2ff

// ParseKey resolves a config key token to an evdev key code.
//
// Accepted forms: a decimal code ("30"), a hex code ("0x1e"), an evdev
// name ("KEY_A"), the name without prefix ("a", "F12") or an alias ("ctrl").
// Names are case-insensitive.
func ParseKey(token string) (keys.Code, error) {
	raw := strings.TrimSpace(token)
	if raw == "" {
		return 0, fmt.Errorf("key token is empty")
	}

	if code, ok, err := parseNumericKey(raw); ok {
		return code, err
	}

	name := strings.ToUpper(raw)
	if alias, ok := keyAliases[name]; ok {
		name = alias
	}
	if !strings.HasPrefix(name, "KEY_") && !strings.HasPrefix(name, "BTN_") {
		name = "KEY_" + name
	}
	code, ok := evdev.KEYFromString[name]
	if !ok {
		return 0, fmt.Errorf("unknown key %q", raw)
	}
	return keys.Code(code), nil
}

func parseNumericKey(raw string) (keys.Code, bool, error) {
	lower := strings.ToLower(raw)
	base := 10
	digits := lower
	if strings.HasPrefix(lower, "0x") {
		base = 16
		digits = lower[2:]
	}
	if digits == "" {
		return 0, false, nil
	}
	for _, r := range digits {
		isDigit := r >= '0' && r <= '9'
		isHex := base == 16 && r >= 'a' && r <= 'f'
		if !isDigit && !isHex {
			return 0, false, nil
		}
	}
	value, err := strconv.ParseUint(digits, base, 16)
	if err != nil || value > maxKeyCode {
		return 0, true, fmt.Errorf("key code %q out of range", raw)
	}
	if value == 0 {
		return 0, true, fmt.Errorf("key code 0 (KEY_RESERVED) is not a valid key")
	}
	return keys.Code(value), true, nil
}

// KeyName returns the evdev name for code, or its decimal value when unknown.
func KeyName(code keys.Code) string {
	if name, ok := evdev.KEYToString[evdev.EvCode(code)]; ok {
		return name
	}
	return strconv.Itoa(int(code))
}
