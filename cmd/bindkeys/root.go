package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bindkeys/internal/config"
)

// Setting keys. Each is bound to a flag and to BINDKEYS_<KEY> with dashes
// replaced by underscores.
const (
	keyConfig   = "config"
	keyLogLevel = "log-level"
	keyShowKeys = "show-keys"
	keyLimit    = "limit"
)

const longRoot = `
bindkeys watches one keyboard and runs shell commands when configured key
combinations are released. Commands can be delayed, scoped to a mode, and
can switch the active mode.

Running bindkeys without a subcommand is the same as "bindkeys run".
`

// newRootCmd builds the command tree around a fresh viper instance so
// tests can run commands without sharing global state.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BINDKEYS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "bindkeys",
		Short:         "Hotkey daemon for Linux input devices",
		Long:          longRoot,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), v, cmd.OutOrStdout())
		},
	}

	pf := root.PersistentFlags()
	pf.String(keyConfig, config.DefaultPath(), "config file")
	pf.String(keyLogLevel, "info", "log level (debug, info, warn, error)")
	pf.BoolP(keyShowKeys, "s", false, "print the code of every released key")
	for _, key := range []string{keyConfig, keyLogLevel, keyShowKeys} {
		// Lookup cannot fail for flags defined just above.
		_ = v.BindPFlag(key, pf.Lookup(key))
	}

	root.AddCommand(
		newRunCmd(v),
		newCheckCmd(v),
		newDevicesCmd(),
		newHistoryCmd(v),
	)
	return root
}

// loadConfig installs logging at the configured level and loads the file.
func loadConfig(v *viper.Viper) (config.Config, error) {
	if err := setupLogging(v.GetString(keyLogLevel), nil); err != nil {
		return config.Config{}, err
	}
	return config.Load(v.GetString(keyConfig))
}
