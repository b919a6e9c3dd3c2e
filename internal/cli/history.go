package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/history"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past calibration runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := history.NewStore(dbPath)
			if err := store.Init(cmd.Context()); err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSUBJECT\tPHASES\tPASSES\tCONVERGED\tCOST\tDURATION\tMODEL")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%.6f\t%s\t%s\n",
					humanize.Time(run.StartedAt), run.Subject, run.Phases, run.Passes,
					run.Converged, run.FinalCost, run.Duration.Round(time.Second), run.OutputModel)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "history.db", "run history database")
	cmd.Flags().IntVar(&limit, "limit", 20, "most recent runs to show (0 for all)")

	return cmd
}
