package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

// newListCmd creates the 'list' subcommand.
func newListCmd(c *cli) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived URLs and the state of each provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.resolveApp()
			if err != nil {
				return err
			}
			filter := archive.Status(strings.ToLower(strings.TrimSpace(status)))
			if filter != "" && !filter.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}

			providers := a.Config().Providers.Enabled
			headers := append([]string{"ID", "URL", "CREATED"}, providers...)
			var rows [][]string
			for _, rec := range a.Store().List() {
				if filter != "" && !hasStatus(rec, filter) {
					continue
				}
				row := []string{rec.ID, rec.URL, rec.CreatedAt.Format(time.RFC3339)}
				for _, name := range providers {
					st := rec.State(name)
					row = append(row, statusLabel(st.Status, st.ErrorCode))
				}
				rows = append(rows, row)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(headers, rows))
			fmt.Fprintln(out, summary(a.Store().Stats()))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only show records with a provider in this status")
	return cmd
}

func hasStatus(rec archive.Record, status archive.Status) bool {
	for _, st := range rec.Providers {
		if st.Status == status {
			return true
		}
	}
	return false
}

func summary(stats map[archive.Status]int) string {
	statuses := make([]string, 0, len(stats))
	for s := range stats {
		statuses = append(statuses, string(s))
	}
	slices.Sort(statuses)
	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, fmt.Sprintf("%s=%d", s, stats[archive.Status(s)]))
	}
	if len(parts) == 0 {
		return "no records"
	}
	return strings.Join(parts, " ")
}
