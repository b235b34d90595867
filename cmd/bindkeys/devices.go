package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bindkeys/internal/input"
)

var listDevicesFn = input.ListDevices

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List input devices usable as the keyboard setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := listDevicesFn()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "no input devices found (is /dev/input readable?)")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tNAME")
			for _, d := range devices {
				fmt.Fprintf(tw, "%s\t%s\n", d.Path, d.Name)
			}
			return tw.Flush()
		},
	}
}
