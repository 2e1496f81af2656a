package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// statusesCmd prints the tracker's status vocabulary.
var statusesCmd = &cobra.Command{
	Use:   "statuses",
	Short: "List the tracker's issue statuses",
	Long: `List the issue statuses of the configured tracker with their ids, in
tracker order. Use it to check tracker.issue_closed_status and the
change_status_to values of the actions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		client, err := connectTracker(cmd.Context(), cfg.Tracker)
		if err != nil {
			return err
		}

		statuses, err := client.Statuses(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list statuses: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\t")
		for _, s := range statuses {
			marker := ""
			if s.Name == cfg.Tracker.IssueClosedStatus {
				marker = "(issue_closed_status)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Name, marker)
		}
		return w.Flush()
	},
}
