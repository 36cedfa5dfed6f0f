package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAgentsCmd() *cobra.Command {
	agentsCmd := &cobra.Command{
		Use:   "agents",
		Short: "List and manage agents",
		RunE:  runAgentsList,
	}

	agentsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		RunE:  runAgentsList,
	})

	var description string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newConsole()
			if err != nil {
				return err
			}
			defer c.Close()

			var desc *string
			if description != "" {
				desc = &description
			}
			agent, err := c.API().CreateAgent(cmd.Context(), args[0], desc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created agent %d (%s)\n", agent.ID, agent.Name)
			return nil
		},
	}
	addCmd.Flags().StringVar(&description, "description", "", "agent description")

	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid agent id %q", args[0])
			}

			c, err := newConsole()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.API().DeleteAgent(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted agent %d\n", id)
			return nil
		},
	}

	agentsCmd.AddCommand(addCmd, removeCmd)
	return agentsCmd
}

func runAgentsList(cmd *cobra.Command, _ []string) error {
	c, err := newConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	agents, err := c.API().Agents(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tDESCRIPTION")
	for _, a := range agents {
		desc := ""
		if a.Description != nil {
			desc = *a.Description
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", a.ID, a.Name, a.Status, desc)
	}
	return w.Flush()
}
