package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quantum-n3bula/console/internal/api"
)

func newLogsCmd() *cobra.Command {
	var (
		level  string
		source string
		limit  int
	)

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "List recent log entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newConsole()
			if err != nil {
				return err
			}
			defer c.Close()

			logs, err := c.API().Logs(cmd.Context(), api.LogQuery{
				Level:  level,
				Source: source,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tLEVEL\tSOURCE\tMESSAGE")
			for _, l := range logs {
				src := ""
				if l.Source != nil {
					src = *l.Source
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					l.CreatedAt.Format("15:04:05"), l.Level, src, l.Message)
			}
			return w.Flush()
		},
	}
	logsCmd.Flags().StringVar(&level, "level", "", "filter by log level")
	logsCmd.Flags().StringVar(&source, "source", "", "filter by source")
	logsCmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to fetch")

	logsCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one log entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid log id %q", args[0])
			}

			c, err := newConsole()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.API().DeleteLog(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted log %d\n", id)
			return nil
		},
	})

	return logsCmd
}
