package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bindkeys/internal/config"
	"bindkeys/internal/daemon"
	"bindkeys/internal/history"
	"bindkeys/internal/input"
	"bindkeys/internal/procutil"
	"bindkeys/internal/singleinstance"
	"bindkeys/internal/workerutil"
	"bindkeys/internal/wsserver"
)

// eventSource is the part of *input.Device the run loop needs.
type eventSource interface {
	Events(ctx context.Context) <-chan input.Event
	Err() error
	Close() error
}

var (
	openDeviceFn = func(path string) (eventSource, error) {
		dev, err := input.Open(path)
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
	newExecutorFn = func(shell string) daemon.Executor {
		return procutil.Detacher{Shell: shell, Stdout: os.Stdout, Stderr: os.Stderr}
	}
	lockPathFn = singleinstance.PathFor
)

const longRun = `
Start the daemon in the foreground.

The config file is reloaded when it changes; only the key binds are
replaced, the current mode and pending delayed commands are kept.

Examples:
  # Print key codes while building a config.
  bindkeys run --show-keys --log-level debug

  # Use another config file.
  BINDKEYS_CONFIG=./bindkeys.yaml bindkeys run
`

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the hotkey daemon (default)",
		Long:  longRun,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), v, cmd.OutOrStdout())
		},
	}
}

func runDaemon(ctx context.Context, v *viper.Viper, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfgPath := v.GetString(keyConfig)
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	lock, err := singleinstance.TryLock(lockPathFn(cfg.Keyboard))
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		return fmt.Errorf("another bindkeys is already reading %s", cfg.Keyboard)
	}
	if err != nil {
		// Not fatal: the lock only guards against double dispatch.
		slog.Warn("[DEBUG-SINGLE] lock unavailable, proceeding without single-instance guard", "error", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("[DEBUG-SINGLE] lock release failed", "error", err)
		}
	}()

	opts := daemon.Options{
		Bindings:    cfg.Bindings,
		DefaultMode: cfg.DefaultMode,
		Executor:    newExecutorFn(cfg.Shell),
	}
	if v.GetBool(keyShowKeys) {
		opts.ShowKeys = stdout
	}

	if cfg.EventAddr != "" {
		hub := wsserver.NewHub(wsserver.HubOptions{Addr: cfg.EventAddr})
		if err := hub.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := hub.Stop(); err != nil {
				slog.Warn("[DEBUG-WS] stop failed", "error", err)
			}
		}()
		if err := setupLogging(v.GetString(keyLogLevel), feedLogCallback(hub)); err != nil {
			return err
		}
		opts.Publisher = hub
	}

	if cfg.HistoryDB != "" {
		journal, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer journal.Close()
		opts.Journal = journal
	}

	dev, err := openDeviceFn(cfg.Keyboard)
	if err != nil {
		return err
	}
	defer dev.Close()

	d, err := daemon.New(opts)
	if err != nil {
		return err
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer stopWatch()
	workerutil.RunWithPanicRecovery(watchCtx, "config-watcher", &wg, func(ctx context.Context) {
		err := config.Watch(ctx, cfgPath, func(next config.Config) {
			if next.Keyboard != cfg.Keyboard {
				slog.Warn("[WARN-CONFIG] keyboard changed, restart to use it",
					"running", cfg.Keyboard, "configured", next.Keyboard)
			}
			d.UpdateBindings(next.Bindings)
		})
		if err != nil {
			slog.Warn("[WARN-CONFIG] hot reload disabled", "error", err)
		}
	}, workerutil.RecoveryOptions{})

	err = d.Run(ctx, dev.Events(ctx))
	if errors.Is(err, daemon.ErrInputClosed) {
		if readErr := dev.Err(); readErr != nil {
			return readErr
		}
		return fmt.Errorf("%w: %s", err, cfg.Keyboard)
	}
	return err
}
