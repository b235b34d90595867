package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bindkeys/internal/history"
	"bindkeys/internal/hotkeys"
	"bindkeys/internal/input"
	"bindkeys/internal/keys"
	"bindkeys/internal/wsserver"
)

// HandleEvent applies one key transition. Bindings are evaluated on
// release, against the held set that still includes the released key;
// the key is removed from the tracker only after dispatch.
func (d *Daemon) HandleEvent(ctx context.Context, ev input.Event) {
	switch ev.Action {
	case input.Press:
		d.tracker.Press(ev.Code, ev.Time)
	case input.Release:
		if d.showKeys != nil && ev.Code != 0 {
			fmt.Fprintf(d.showKeys, " - %d %s\n", ev.Code, hotkeys.KeyName(ev.Code))
		}
		snapshot := d.tracker.Snapshot()
		mode, modeSet := d.mode.Current()
		if slog.Default().Enabled(ctx, slog.LevelDebug) {
			slog.Debug("[DEBUG-DAEMON] release", "code", ev.Code, "held", d.tracker.Held(), "mode", mode)
		}
		for _, b := range hotkeys.Evaluate(d.bindings, snapshot, mode, modeSet) {
			d.dispatch(ctx, b, snapshot)
		}
		d.tracker.Release(ev.Code)
	}
}

// dispatch performs every action of a matched binding in a fixed order:
// the command (now or delayed), then the mode change.
func (d *Daemon) dispatch(ctx context.Context, b hotkeys.Binding, snapshot []keys.Code) {
	d.publish(wsserver.Event{Type: wsserver.EventMatch, Binding: b.Label(), Keys: codes(snapshot)})

	if command, ok := b.Command(); ok {
		if delay, delayed := b.Delay(); delayed {
			d.schedule(b, command, delay)
		} else {
			slog.Info("[DEBUG-DAEMON] execute", "binding", b.Label(), "command", command)
			d.execute(ctx, command, history.SourceImmediate, time.Time{})
		}
	}

	if next, ok := b.ChangeMode(); ok {
		if d.mode.TransitionTo(next) {
			slog.Info("[DEBUG-DAEMON] change_mode", "binding", b.Label(), "mode", next)
			d.publish(wsserver.Event{Type: wsserver.EventMode, Binding: b.Label(), Mode: next})
		}
	}
}

func (d *Daemon) schedule(b hotkeys.Binding, command string, delay time.Duration) {
	task, updated := d.queue.Upsert(command, d.now().Add(delay))
	slog.Info("[DEBUG-DAEMON] delayed execution",
		"binding", b.Label(),
		"command", command,
		"delay", delay,
		"updated", updated,
	)
	executeAt := task.ExecuteAt
	d.publish(wsserver.Event{
		Type:      wsserver.EventSchedule,
		Binding:   b.Label(),
		Command:   command,
		TaskID:    task.ID,
		ExecuteAt: &executeAt,
		Updated:   updated,
	})
}

// execute detaches command and records it. A start failure is only logged:
// detached commands have no observable outcome.
func (d *Daemon) execute(ctx context.Context, command string, source history.Source, scheduledAt time.Time) {
	if err := d.exec.Execute(command); err != nil {
		slog.Debug("[DEBUG-DAEMON] failed to start command", "command", command, "source", source, "error", err)
		return
	}

	executedAt := d.now()
	d.publish(wsserver.Event{Type: wsserver.EventExec, Time: executedAt, Command: command, Source: string(source)})

	if d.journal == nil {
		return
	}
	if err := d.journal.Record(ctx, history.Execution{
		Command:     command,
		Source:      source,
		ScheduledAt: scheduledAt,
		ExecutedAt:  executedAt,
	}); err != nil {
		slog.Warn("[DEBUG-DAEMON] failed to journal execution", "command", command, "error", err)
	}
}

func (d *Daemon) publish(ev wsserver.Event) {
	if d.publisher == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = d.now()
	}
	d.publisher.Publish(ev)
}

func codes(snapshot []keys.Code) []uint16 {
	out := make([]uint16, len(snapshot))
	for i, c := range snapshot {
		out[i] = uint16(c)
	}
	return out
}
