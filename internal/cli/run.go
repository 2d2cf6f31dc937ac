package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opsweep/opsweep/internal/domain/decommission"
	"github.com/opsweep/opsweep/internal/services"
)

func newRunCmd() *cobra.Command {
	var (
		dryRun         bool
		force          bool
		noPreserveData bool
		concurrency    int
	)

	cmd := &cobra.Command{
		Use:   "run <scope> <tier>",
		Short: "Run one decommission sweep over a scope",
		Long: `Run inventories the scope for expensive resources allowed by the tier,
skips protected and depended-upon resources, backs up the rest, and
requests their deletion. Use --dry-run first to see what a run would do.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := args[0]
			tier, err := parseTier(args[1])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			exec, cleanup, err := a.executor()
			if err != nil {
				return err
			}
			defer cleanup()

			policy := a.cfg.PolicyFor(tier)
			policy.DryRun = dryRun
			if force {
				policy.Force = true
			}
			if noPreserveData {
				policy.PreserveData = false
			}
			if concurrency > 0 {
				policy.Concurrency = concurrency
			}

			result, err := exec.Run(ctx, scope, policy, a.cfg.AllowList(tier))
			if errors.Is(err, services.ErrConfirmationDeclined) {
				return fmt.Errorf("aborted: %w", err)
			}
			if err != nil {
				return err
			}

			fmt.Println(services.RenderSummary(result.Report, result.Location))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan only, mutate nothing")
	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&noPreserveData, "no-preserve-data", false, "delete even when dependents exist or backup fails")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "resource workers (default from config)")

	return cmd
}

func parseTier(s string) (decommission.Tier, error) {
	switch t := decommission.Tier(s); t {
	case decommission.TierDevelopment, decommission.TierStaging, decommission.TierProduction:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tier %q (expected development, staging or production)", s)
	}
}
