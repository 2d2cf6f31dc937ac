package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opsweep/opsweep/internal/config"
	"github.com/opsweep/opsweep/internal/repository/sqlite"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past decommission runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			repo, err := sqlite.New(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer repo.Close()

			runs, err := repo.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSCOPE\tTIER\tSTATUS\tDELETED\tSCALED\tSKIPPED\tFAILED\tDRY-RUN\tREPORT")
			for _, r := range runs {
				mode := ""
				if r.DryRun {
					mode = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
					r.StartedAt.Format("2006-01-02 15:04"),
					r.Scope, r.Tier, r.Status,
					r.Deleted, r.ScaledDown, r.Skipped, r.Failed,
					mode, r.ReportLocation)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")

	return cmd
}
