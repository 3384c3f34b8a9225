package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/web-archiver/internal/app"
	"github.com/JakeFAU/web-archiver/internal/host"
)

// newPasteCmd creates the 'paste' subcommand. It treats its input as text
// just pasted into an empty note and prints the note after the archive links
// were inserted.
func newPasteCmd(c *cli) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "paste [TEXT]",
		Short: "Simulate pasting text into a note",
		Args:  cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.appOpts = append(c.appOpts, app.WithPasteWait(wait))
			return c.setup(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.resolveApp()
			if err != nil {
				return err
			}
			pasted, err := pastedText(cmd, args)
			if err != nil {
				return err
			}
			buf := host.NewTextBuffer(pasted)
			if _, err = a.Paste().HandlePaste(cmd.Context(), buf, pasted); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), buf.String())
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait this long for snapshots before falling back to placeholder links")
	return cmd
}

func pastedText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
