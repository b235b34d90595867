// Package daemon ties the key tracker, binding matcher, mode state and
// delayed queue into the hotkey event loop.
package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"bindkeys/internal/delayq"
	"bindkeys/internal/history"
	"bindkeys/internal/hotkeys"
	"bindkeys/internal/input"
	"bindkeys/internal/keys"
	"bindkeys/internal/workerutil"
	"bindkeys/internal/wsserver"
)

// DefaultTickInterval is how often the background executor checks the
// delayed queue.
const DefaultTickInterval = time.Second

// ErrInputClosed is returned by Run when the event channel closes before
// the context is cancelled, typically because the device went away.
var ErrInputClosed = errors.New("daemon: input closed")

// Executor starts a command without waiting for it.
// procutil.Detacher is the production implementation.
type Executor interface {
	Execute(command string) error
}

// Journal records executed commands.
type Journal interface {
	Record(ctx context.Context, e history.Execution) error
}

// Publisher receives daemon events for the feed.
type Publisher interface {
	Publish(ev wsserver.Event)
}

// Options configures a Daemon. Executor is required.
type Options struct {
	Bindings    []hotkeys.Binding
	DefaultMode string
	Executor    Executor

	// Journal and Publisher are optional.
	Journal   Journal
	Publisher Publisher

	// ShowKeys receives one line per released key when non-nil.
	ShowKeys io.Writer

	// Now defaults to time.Now.
	Now          func() time.Time
	TickInterval time.Duration
}

// Daemon is the hotkey engine. HandleEvent and UpdateBindings are meant to
// be driven by Run's single goroutine; the queue and mode are shared with
// the background executor and the feed.
type Daemon struct {
	tracker  *keys.Tracker
	mode     *hotkeys.Mode
	queue    *delayq.Queue
	bindings []hotkeys.Binding

	exec      Executor
	journal   Journal
	publisher Publisher
	showKeys  io.Writer
	now       func() time.Time
	tick      time.Duration

	reloads chan []hotkeys.Binding
}

// New builds a daemon from opts.
func New(opts Options) (*Daemon, error) {
	if opts.Executor == nil {
		return nil, errors.New("daemon: executor is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if len(opts.Bindings) == 0 {
		slog.Warn("[DEBUG-DAEMON] no key binds, daemon will never fire")
	}
	return &Daemon{
		tracker:   keys.NewTracker(),
		mode:      hotkeys.NewMode(opts.DefaultMode),
		queue:     delayq.New(),
		bindings:  opts.Bindings,
		exec:      opts.Executor,
		journal:   opts.Journal,
		publisher: opts.Publisher,
		showKeys:  opts.ShowKeys,
		now:       opts.Now,
		tick:      opts.TickInterval,
		reloads:   make(chan []hotkeys.Binding, 1),
	}, nil
}

// Mode returns the active mode and whether one is set.
func (d *Daemon) Mode() (string, bool) {
	return d.mode.Current()
}

// Pending returns a copy of the delayed tasks.
func (d *Daemon) Pending() []delayq.Task {
	return d.queue.Tasks()
}

// UpdateBindings hands a new binding list to the event loop. It never
// blocks; an update not yet applied is replaced by the newer one.
// Mode and pending tasks are kept.
func (d *Daemon) UpdateBindings(bindings []hotkeys.Binding) {
	for {
		select {
		case d.reloads <- bindings:
			return
		default:
		}
		select {
		case <-d.reloads:
		default:
		}
	}
}

// Run consumes events until ctx is cancelled or events is closed. The
// background executor runs for the lifetime of Run and has stopped by the
// time Run returns.
func (d *Daemon) Run(ctx context.Context, events <-chan input.Event) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	d.startExecutor(ctx, &wg)
	// The executor only exits on cancel, so cancel must come first.
	defer func() {
		cancel()
		wg.Wait()
	}()

	mode, ok := d.mode.Current()
	slog.Info("[DEBUG-DAEMON] started", "bindings", len(d.bindings), "mode", mode, "modeSet", ok)

	for {
		select {
		case <-ctx.Done():
			slog.Info("[DEBUG-DAEMON] stopping", "pending", d.queue.Len())
			return nil
		case bindings := <-d.reloads:
			d.applyBindings(bindings)
		case ev, ok := <-events:
			if !ok {
				return ErrInputClosed
			}
			d.HandleEvent(ctx, ev)
		}
	}
}

func (d *Daemon) applyBindings(bindings []hotkeys.Binding) {
	d.bindings = bindings
	slog.Info("[DEBUG-DAEMON] bindings replaced", "bindings", len(bindings))
	if len(bindings) == 0 {
		slog.Warn("[DEBUG-DAEMON] no key binds after reload")
	}
}

func (d *Daemon) startExecutor(ctx context.Context, wg *sync.WaitGroup) {
	workerutil.RunWithPanicRecovery(ctx, "delayed-executor", wg, func(ctx context.Context) {
		workerutil.Every(ctx, d.tick, func(time.Time) {
			d.drainDue(ctx, d.now())
		})
	}, workerutil.RecoveryOptions{})
}

// drainDue runs every queued task whose time has passed.
func (d *Daemon) drainDue(ctx context.Context, now time.Time) {
	if d.queue.Len() == 0 {
		return
	}
	for _, task := range d.queue.DrainDue(now) {
		slog.Debug("[DEBUG-QUEUE] task due", "id", task.ID, "command", task.Command, "executeAt", task.ExecuteAt)
		d.execute(ctx, task.Command, history.SourceDelayed, task.ExecuteAt)
	}
}
