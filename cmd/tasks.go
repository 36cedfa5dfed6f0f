package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quantum-n3bula/console/internal/model"
)

func newTasksCmd() *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and inspect tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newConsole()
			if err != nil {
				return err
			}
			defer c.Close()

			tasks, err := c.API().Tasks(cmd.Context())
			if err != nil {
				return err
			}
			return printTasks(cmd, tasks)
		},
	}

	tasksCmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}

			c, err := newConsole()
			if err != nil {
				return err
			}
			defer c.Close()

			task, err := c.API().Task(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:       %d\n", task.ID)
			fmt.Fprintf(out, "name:     %s\n", task.Name)
			fmt.Fprintf(out, "command:  %s\n", task.Command)
			fmt.Fprintf(out, "status:   %s\n", task.Status)
			if task.Result != nil {
				fmt.Fprintf(out, "result:   %s\n", *task.Result)
			}
			if task.Error != nil {
				fmt.Fprintf(out, "error:    %s\n", *task.Error)
			}
			return nil
		},
	})

	var agentID int64
	createCmd := &cobra.Command{
		Use:   "create <name> <command...>",
		Short: "Create a task without executing it",
		Args:  cobra.MinimumNArgs(2),
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

			task, err := c.API().CreateTask(cmd.Context(), args[0], strings.Join(args[1:], " "), agent)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created task %d (%s)\n", task.ID, task.Status)
			return nil
		},
	}
	createCmd.Flags().Int64Var(&agentID, "agent", 0, "target agent id")
	tasksCmd.AddCommand(createCmd)

	return tasksCmd
}

func printTasks(cmd *cobra.Command, tasks []model.Task) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCOMMAND")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.ID, t.Name, t.Status, t.Command)
	}
	return w.Flush()
}
