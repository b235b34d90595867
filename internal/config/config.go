package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"bindkeys/internal/hotkeys"
	"bindkeys/internal/keys"
)

const maxConfigFileBytes int64 = 1 << 20 // 1MB

// maxDelaySeconds is the largest delay that fits in a time.Duration.
const maxDelaySeconds = int64(math.MaxInt64 / time.Second)

// ErrNoKeyboard is returned when the config names no input device.
// Without a device there is nothing to read, so callers treat it as fatal.
var ErrNoKeyboard = errors.New("no 'keyboard' setting in configuration file")

// userHomeDirFn is a test seam for home directory resolution.
var userHomeDirFn = os.UserHomeDir

// Config is the validated daemon configuration.
type Config struct {
	// Keyboard is the evdev device path, e.g. /dev/input/event3.
	Keyboard string
	// DefaultMode is the initial mode. Empty means no mode, which leaves
	// mode-scoped bindings inert and change_mode requests ignored.
	DefaultMode string
	// Shell runs binding commands. Empty means /bin/sh.
	Shell string
	// HistoryDB enables the execution journal when non-empty.
	HistoryDB string
	// EventAddr enables the WebSocket event feed when non-empty.
	EventAddr string
	// Bindings are the valid key_binds entries in declaration order.
	Bindings []hotkeys.Binding
	// Skipped counts key_binds entries rejected during validation.
	Skipped int
}

// fileConfig mirrors the YAML document. KeyBinds is decoded entry by entry
// so one malformed binding cannot reject the whole file.
type fileConfig struct {
	Keyboard    string      `yaml:"keyboard"`
	DefaultMode string      `yaml:"default_mode"`
	Shell       string      `yaml:"shell"`
	HistoryDB   string      `yaml:"history_db"`
	EventAddr   string      `yaml:"event_addr"`
	KeyBinds    []yaml.Node `yaml:"key_binds"`
}

type fileBinding struct {
	Name       string     `yaml:"name"`
	Keys       []keyToken `yaml:"keys"`
	Mode       string     `yaml:"mode"`
	Command    string     `yaml:"command"`
	ChangeMode string     `yaml:"change_mode"`
	// Delay is in whole seconds; nil means immediate execution.
	Delay *int64 `yaml:"delay"`
}

// keyToken accepts both integer codes and key names in the keys list.
type keyToken string

func (k *keyToken) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: key must be a number or a name", value.Line)
	}
	*k = keyToken(value.Value)
	return nil
}

// DefaultPath returns $XDG_CONFIG_HOME/bindkeys/config.yaml, falling back
// to ~/.config and then to the working directory.
func DefaultPath() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := userHomeDirFn()
		if err != nil {
			slog.Warn("[WARN-CONFIG] cannot resolve home directory, using working directory", "error", err)
			return "bindkeys.yaml"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "bindkeys", "config.yaml")
}

// Load reads and validates the config file at path.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates a YAML config document.
//
// Malformed key_binds entries are skipped with a warning; only a missing
// keyboard or unparsable YAML is an error.
func Parse(raw []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Config{}, fmt.Errorf("parse: %w", err)
	}

	cfg := Config{
		Keyboard:    strings.TrimSpace(fc.Keyboard),
		DefaultMode: strings.TrimSpace(fc.DefaultMode),
		Shell:       strings.TrimSpace(fc.Shell),
		HistoryDB:   expandHome(strings.TrimSpace(fc.HistoryDB)),
		EventAddr:   strings.TrimSpace(fc.EventAddr),
	}
	if cfg.Keyboard == "" {
		return cfg, ErrNoKeyboard
	}
	slog.Info("[DEBUG-CONFIG] keyboard", "device", cfg.Keyboard)

	if cfg.DefaultMode == "" {
		slog.Info("[DEBUG-CONFIG] no default mode")
	} else {
		slog.Info("[DEBUG-CONFIG] default mode", "mode", cfg.DefaultMode)
	}

	for i, node := range fc.KeyBinds {
		var fb fileBinding
		var b hotkeys.Binding
		err := node.Decode(&fb)
		if err == nil {
			b, err = buildBinding(i, fb)
		}
		if err != nil {
			slog.Warn("[WARN-CONFIG] skipping binding", "index", i, "name", fb.Name, "error", err)
			cfg.Skipped++
			continue
		}
		cfg.Bindings = append(cfg.Bindings, b)
	}
	if len(cfg.Bindings) == 0 {
		slog.Warn("[WARN-CONFIG] no key binds")
	}
	return cfg, nil
}

func buildBinding(index int, fb fileBinding) (hotkeys.Binding, error) {
	if len(fb.Keys) == 0 {
		return hotkeys.Binding{}, errors.New("could not get keys")
	}
	codes := make([]keys.Code, 0, len(fb.Keys))
	for _, token := range fb.Keys {
		code, err := hotkeys.ParseKey(string(token))
		if err != nil {
			return hotkeys.Binding{}, err
		}
		codes = append(codes, code)
	}

	spec := hotkeys.BindingSpec{
		Index:      index,
		Name:       strings.TrimSpace(fb.Name),
		Keys:       codes,
		Mode:       strings.TrimSpace(fb.Mode),
		Command:    strings.TrimSpace(fb.Command),
		ChangeMode: strings.TrimSpace(fb.ChangeMode),
	}
	if fb.Delay != nil {
		if *fb.Delay > maxDelaySeconds {
			return hotkeys.Binding{}, fmt.Errorf("delay %ds exceeds %ds", *fb.Delay, maxDelaySeconds)
		}
		d := time.Duration(*fb.Delay) * time.Second
		spec.Delay = &d
	}
	return hotkeys.NewBinding(spec)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := userHomeDirFn()
	if err != nil {
		slog.Warn("[WARN-CONFIG] cannot expand ~ in path", "path", path, "error", err)
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limited := io.LimitReader(file, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}
