package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"bindkeys/internal/sessionlog"
	"bindkeys/internal/wsserver"
)

// teeLevel is the lowest level forwarded to the event feed.
const teeLevel = slog.LevelWarn

// parseLogLevel accepts the slog level names, case-insensitively.
func parseLogLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	return level, nil
}

// setupLogging installs the default logger on stderr. A non-nil tee also
// receives warning-and-above records.
func setupLogging(rawLevel string, tee sessionlog.EntryCallback) error {
	level, err := parseLogLevel(rawLevel)
	if err != nil {
		return err
	}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	if tee != nil {
		handler = sessionlog.NewTeeHandler(handler, teeLevel, tee)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// feedLogCallback turns teed log records into feed events.
func feedLogCallback(hub *wsserver.Hub) sessionlog.EntryCallback {
	return func(ts time.Time, level slog.Level, msg string, attrs string) {
		if attrs != "" {
			msg = msg + " " + attrs
		}
		hub.Publish(wsserver.Event{
			Type:    wsserver.EventLog,
			Time:    ts,
			Level:   level.String(),
			Message: msg,
		})
	}
}
