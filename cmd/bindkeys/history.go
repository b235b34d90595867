package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bindkeys/internal/history"
)

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently executed commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if cfg.HistoryDB == "" {
				return errors.New("history_db is not set in the config file")
			}
			journal, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer journal.Close()

			rows, err := journal.Recent(cmd.Context(), v.GetInt(keyLimit))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "no executions recorded")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EXECUTED\tSOURCE\tCOMMAND")
			for _, e := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ExecutedAt.Local().Format(time.DateTime), e.Source, e.Command)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int(keyLimit, 20, "number of rows to show")
	_ = v.BindPFlag(keyLimit, cmd.Flags().Lookup(keyLimit))
	return cmd
}
