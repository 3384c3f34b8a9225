package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newReconcileCmd creates the 'reconcile' subcommand. Startup already resets
// interrupted provider states and persists them; the command reports the count.
func newReconcileCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Reset provider states interrupted by a previous run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.resolveApp()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d provider states\n", a.Reconciled())
			return nil
		},
	}
}
