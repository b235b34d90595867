package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events editors emit for one save.
const reloadDebounce = 150 * time.Millisecond

// Watch reloads path whenever it changes and passes the result to onChange.
// It blocks until ctx is cancelled. A reload that fails keeps the previous
// config and is only logged.
//
// The parent directory is watched rather than the file itself so that
// editors that save by renaming a temp file over the original are seen.
func Watch(ctx context.Context, path string, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(target), err)
	}
	slog.Debug("[DEBUG-CONFIG] watching config for changes", "path", target)

	reload := time.NewTimer(reloadDebounce)
	reload.Stop()
	defer reload.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				reload.Reset(reloadDebounce)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("[WARN-CONFIG] watcher error", "error", werr)
		case <-reload.C:
			cfg, err := Load(target)
			if err != nil {
				slog.Warn("[WARN-CONFIG] reload failed, keeping previous config", "path", target, "error", err)
				continue
			}
			slog.Info("[DEBUG-CONFIG] config reloaded", "path", target, "bindings", len(cfg.Bindings))
			onChange(cfg)
		}
	}
}
