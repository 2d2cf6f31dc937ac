package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opsweep/opsweep/internal/pkg/metrics"
	"github.com/opsweep/opsweep/internal/services"
)

func newScheduleCmd() *cobra.Command {
	var (
		cronExpr string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "schedule <scope> <tier>",
		Short: "Run decommission sweeps on a cron schedule",
		Long: `Schedule keeps the process running and executes a sweep on every tick of
the cron expression. Scheduled sweeps are non-interactive and run with
--force implied; a Prometheus endpoint is exposed for the duration.`,
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
			policy.Force = true // no operator to prompt

			sched := services.NewScheduler(a.log)
			err = sched.Add(cronExpr, func() {
				result, err := exec.Run(ctx, scope, policy, a.cfg.AllowList(tier))
				if err != nil {
					a.log.ErrorWithErr(err, "scheduled sweep failed")
					return
				}
				a.log.Infof("scheduled sweep finished with %d decision(s)", len(result.Report.Decisions))
			})
			if err != nil {
				return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					a.log.ErrorWithErr(err, "metrics server failed")
				}
			}()

			sched.Start()
			a.log.Infof("scheduler started for scope %s (%s), metrics on %s", scope, tier, a.cfg.Metrics.Addr)

			<-ctx.Done()
			a.log.Info("shutting down scheduler")
			sched.Stop()
			_ = srv.Close()
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "cron expression, e.g. \"0 2 * * 6\" (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan only on every tick")
	_ = cmd.MarkFlagRequired("cron")

	return cmd
}
