package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend health and counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newConsole()
			if err != nil {
				return err
			}
			defer c.Close()

			status, err := c.API().Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status:    %s\n", status.Status)
			fmt.Fprintf(out, "version:   %s\n", status.Version)
			fmt.Fprintf(out, "uptime:    %.0fs\n", status.UptimeSeconds)
			fmt.Fprintf(out, "database:  %v\n", status.DatabaseConnected)
			fmt.Fprintf(out, "agents:    %d active\n", status.ActiveAgents)
			fmt.Fprintf(out, "tasks:     %d pending\n", status.PendingTasks)
			fmt.Fprintf(out, "logs:      %d total\n", status.TotalLogs)
			return nil
		},
	}
}
