package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/web-archiver/internal/archive"
	"github.com/JakeFAU/web-archiver/internal/orchestrator"
)

// newArchiveCmd creates the 'archive' subcommand, which archives its
// arguments and prints one row per (URL, provider) once every provider has
// settled.
func newArchiveCmd(c *cli) *cobra.Command {
	var (
		concurrency int
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "archive URL...",
		Short: "Archive URLs with every enabled provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.resolveApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			orch := a.Orchestrator()
			results, runErr := orch.ArchiveAll(ctx, args, concurrency)
			rows, failed := archiveRows(orch, results)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"URL", "ID", "PROVIDER", "STATUS", "LINK"}, rows))

			if runErr != nil {
				return fmt.Errorf("archive interrupted: %w", runErr)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d urls could not be archived", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "maximum URLs archived at once")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up waiting after this long (0 waits for every provider)")
	return cmd
}

func archiveRows(orch *orchestrator.Orchestrator, results []orchestrator.Result) ([][]string, int) {
	var (
		rows   [][]string
		failed int
	)
	for _, r := range results {
		if r.Err != nil {
			failed++
			rows = append(rows, []string{r.URL, "", "", "failed", r.Err.Error()})
			continue
		}
		links, err := orch.Links(r.Record.ID)
		if err != nil {
			failed++
			rows = append(rows, []string{r.URL, r.Record.ID, "", "failed", err.Error()})
			continue
		}
		for _, l := range links {
			rows = append(rows, []string{r.URL, r.Record.ID, l.DisplayName, statusLabel(l.Status, l.ErrorCode), l.Location})
		}
	}
	return rows, failed
}

func statusLabel(status archive.Status, code int) string {
	if status == archive.StatusError && code != 0 {
		return string(status) + " " + strconv.Itoa(code)
	}
	return string(status)
}
