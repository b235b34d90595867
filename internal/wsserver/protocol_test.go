package wsserver

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEncodeEvent(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	data, err := EncodeEvent(Event{Type: EventExec, Time: at, Command: "echo hi", Source: "immediate"})
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["type"] != "exec" || got["command"] != "echo hi" || got["source"] != "immediate" {
		t.Errorf("decoded = %v", got)
	}
	if got["time"] != "2026-10-18T09:00:00Z" {
		t.Errorf("time = %v", got["time"])
	}
	for _, absent := range []string{"mode", "taskId", "executeAt", "updated", "keys"} {
		if _, ok := got[absent]; ok {
			t.Errorf("field %q present, want omitted", absent)
		}
	}
}

func TestEncodeEventFillsTime(t *testing.T) {
	data, err := EncodeEvent(Event{Type: EventMode, Mode: "game"})
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	if strings.Contains(string(data), `"0001-01-01`) {
		t.Fatalf("zero time leaked into frame: %s", data)
	}
}

func TestEncodeEventRequiresType(t *testing.T) {
	if _, err := EncodeEvent(Event{}); err == nil {
		t.Fatal("EncodeEvent() error = nil, want error for empty type")
	}
}
