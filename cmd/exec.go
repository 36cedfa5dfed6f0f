package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newExecCmd() *cobra.Command {
	var agentID int64

	execCmd := &cobra.Command{
		Use:   "exec <command...>",
		Short: "Dispatch a command for execution",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newConsole()
			if err != nil {
				return err
			}
			defer c.Close()

			var agent *int64
			if cmd.Flags().Changed("agent") {
				agent = &agentID
			}

			task, err := c.API().Execute(cmd.Context(), strings.Join(args, " "), agent)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dispatched task %d (%s)\n", task.ID, task.Status)
			return nil
		},
	}
	execCmd.Flags().Int64Var(&agentID, "agent", 0, "target agent id")

	return execCmd
}
