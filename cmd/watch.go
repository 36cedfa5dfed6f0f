package cmd

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantum-n3bula/console/internal/console"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the push stream and print state changes until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newConsole()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			changes := c.Store().Subscribe()
			c.Start(ctx)

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-changes:
					printSummary(out, c)
				}
			}
		},
	}
}

func printSummary(out io.Writer, c *console.Console) {
	st := c.Store()

	link := "offline"
	if st.StreamConnected() {
		link = "live"
	}

	running := 0
	for _, t := range st.Tasks() {
		if !t.Status.IsTerminal() {
			running++
		}
	}

	backend := "unknown"
	if status, ok := st.SystemStatus(); ok {
		backend = status.Status
	}

	fmt.Fprintf(out, "stream=%s backend=%s tasks=%d active=%d logs=%d agents=%d\n",
		link, backend, len(st.Tasks()), running, len(st.Logs()), len(st.Agents()))
}
