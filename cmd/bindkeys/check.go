package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bindkeys/internal/config"
	"bindkeys/internal/hotkeys"
)

func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and list the effective key binds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

func printConfig(w io.Writer, cfg config.Config) error {
	mode := cfg.DefaultMode
	if mode == "" {
		mode = "(none)"
	}
	fmt.Fprintf(w, "keyboard: %s\nmode: %s\n", cfg.Keyboard, mode)
	if cfg.Skipped > 0 {
		fmt.Fprintf(w, "skipped: %d invalid key binds\n", cfg.Skipped)
	}
	if len(cfg.Bindings) == 0 {
		fmt.Fprintln(w, "no key binds")
		return nil
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BINDING\tKEYS\tMODE\tACTION")
	for _, b := range cfg.Bindings {
		names := make([]string, 0, len(b.Keys()))
		for _, code := range b.Keys() {
			names = append(names, hotkeys.KeyName(code))
		}
		scope, ok := b.Mode()
		if !ok {
			scope = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Label(), strings.Join(names, "+"), scope, describeAction(b))
	}
	return tw.Flush()
}

func describeAction(b hotkeys.Binding) string {
	var parts []string
	if command, ok := b.Command(); ok {
		if delay, delayed := b.Delay(); delayed {
			parts = append(parts, fmt.Sprintf("run %q after %s", command, delay))
		} else {
			parts = append(parts, fmt.Sprintf("run %q", command))
		}
	}
	if next, ok := b.ChangeMode(); ok {
		parts = append(parts, "mode -> "+next)
	}
	return strings.Join(parts, ", ")
}
