// Package input reads key events from a Linux evdev device.
package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"

	"bindkeys/internal/keys"
)

// eventBuffer absorbs short bursts while the daemon dispatches a match.
const eventBuffer = 64

// Kernel EV_KEY values.
const (
	valueRelease = 0
	valuePress   = 1
	valueRepeat  = 2
)

// Action is the key transition reported by an Event.
type Action uint8

const (
	Release Action = iota
	Press
)

func (a Action) String() string {
	if a == Press {
		return "press"
	}
	return "release"
}

// Event is one key transition.
type Event struct {
	Code   keys.Code
	Action Action
	// Time is the kernel timestamp of the event.
	Time time.Time
}

// FromEvdev converts a raw kernel event. It returns false for anything but
// EV_KEY press and release; autorepeat is dropped since a held key is
// already tracked.
func FromEvdev(ev *evdev.InputEvent) (Event, bool) {
	if ev == nil || ev.Type != evdev.EV_KEY {
		return Event{}, false
	}
	var action Action
	switch ev.Value {
	case valuePress:
		action = Press
	case valueRelease:
		action = Release
	default:
		return Event{}, false
	}
	return Event{
		Code:   keys.Code(ev.Code),
		Action: action,
		Time:   time.Unix(ev.Time.Unix()),
	}, true
}

// reader is the subset of *evdev.InputDevice the Device needs.
type reader interface {
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// Device is an open input device.
type Device struct {
	path string
	name string
	r    reader

	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	readErr error
}

// Open checks that path is readable and opens it.
// An unreadable device is the one startup failure the daemon cannot degrade
// around, so the error says how to fix permissions.
func Open(path string) (*Device, error) {
	if path == "" {
		return nil, errors.New("input: device path is empty")
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return nil, fmt.Errorf("input: device %s is not readable (run as root or add the user to the 'input' group): %w", path, err)
	}
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: open %s: %w", path, err)
	}
	name, err := dev.Name()
	if err != nil {
		slog.Debug("[DEBUG-INPUT] device name unavailable", "path", path, "error", err)
	}
	slog.Info("[DEBUG-INPUT] device opened", "path", path, "name", name)
	return &Device{path: path, name: name, r: dev}, nil
}

// Path returns the device path.
func (d *Device) Path() string { return d.path }

// Name returns the kernel-reported device name, possibly empty.
func (d *Device) Name() string { return d.name }

// Close releases the device. Safe to call more than once.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.r.Close()
	})
	return d.closeErr
}

// Err returns the read error that ended the event stream, or nil when the
// stream ended because its context was cancelled.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readErr
}

// Events streams key events until ctx is cancelled or a read fails. The
// channel is closed when the stream ends; cancelling ctx closes the device
// to unblock the pending read.
func (d *Device) Events(ctx context.Context) <-chan Event {
	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)
		stop := context.AfterFunc(ctx, func() {
			if err := d.Close(); err != nil {
				slog.Debug("[DEBUG-INPUT] close on cancel", "path", d.path, "error", err)
			}
		})
		defer stop()

		for {
			raw, err := d.r.ReadOne()
			if err != nil {
				if ctx.Err() == nil {
					d.mu.Lock()
					d.readErr = fmt.Errorf("input: read %s: %w", d.path, err)
					d.mu.Unlock()
				}
				return
			}
			ev, ok := FromEvdev(raw)
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Info describes an input device found on the system.
type Info struct {
	Path string
	Name string
}

// ListDevices returns the evdev devices visible under /dev/input.
func ListDevices() ([]Info, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("input: list devices: %w", err)
	}
	out := make([]Info, 0, len(paths))
	for _, p := range paths {
		out = append(out, Info{Path: p.Path, Name: p.Name})
	}
	return out, nil
}
