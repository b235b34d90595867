// Package wsserver streams daemon events to local WebSocket clients.
//
// # Wire format
//
// Every event is one JSON text frame:
//
//	{"type":"exec","time":"2026-10-18T09:00:00.123Z","binding":"key_binds[0]","command":"echo hi"}
//
// Fields that do not apply to an event type are omitted. Clients never send
// anything meaningful; incoming frames are read only to process pongs and
// detect disconnects.
package wsserver

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a daemon event.
type EventType string

const (
	// EventMatch is sent for every binding satisfied by a release.
	EventMatch EventType = "match"
	// EventExec is sent when a command is detached, immediately or when due.
	EventExec EventType = "exec"
	// EventSchedule is sent when a delayed task is queued or rescheduled.
	EventSchedule EventType = "schedule"
	// EventMode is sent after a successful mode change.
	EventMode EventType = "mode"
	// EventLog carries warning-and-above log records.
	EventLog EventType = "log"
)

// Event is one message on the feed.
type Event struct {
	Type    EventType `json:"type"`
	Time    time.Time `json:"time"`
	Binding string    `json:"binding,omitempty"`
	Keys    []uint16  `json:"keys,omitempty"`
	Command string    `json:"command,omitempty"`
	// Source is "immediate" or "delayed" on exec events.
	Source    string     `json:"source,omitempty"`
	TaskID    string     `json:"taskId,omitempty"`
	ExecuteAt *time.Time `json:"executeAt,omitempty"`
	Updated   bool       `json:"updated,omitempty"`
	Mode      string     `json:"mode,omitempty"`
	Level     string     `json:"level,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// EncodeEvent marshals ev for the wire. Events without a type are rejected.
func EncodeEvent(ev Event) ([]byte, error) {
	if ev.Type == "" {
		return nil, fmt.Errorf("wsserver: encode event: type must not be empty")
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("wsserver: encode event: %w", err)
	}
	return data, nil
}
