package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"workshop-scheduler/internal/parse"
	"workshop-scheduler/internal/recompute"
)

var recomputeFrom, recomputeTo string

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Re-resolve the windows of all open appointments in a date range",
	RunE:  runRecompute,
}

func init() {
	today := time.Now().Format(parse.DateLayout)
	recomputeCmd.Flags().StringVar(&recomputeFrom, "from", today, "first date (YYYY-MM-DD)")
	recomputeCmd.Flags().StringVar(&recomputeTo, "to", today, "last date (YYYY-MM-DD)")
	rootCmd.AddCommand(recomputeCmd)
}

func runRecompute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx, "recompute")
	if err != nil {
		return err
	}
	defer rt.Close()

	svc := recompute.NewService(rt.store, rt.bus, rt.metrics, rt.log, rt.cfg.Scheduling.RecomputeTimeout)
	res, err := svc.Run(ctx, recomputeFrom, recomputeTo, func(p recompute.Progress) {
		if p.Step == recompute.StepResolve {
			rt.log.Debug().Int("done", p.Done).Int("total", p.Total).Msg("recompute progress")
		}
	})
	if err != nil {
		return err
	}
	cmd.Printf("recomputed %s..%s: %d appointment(s), %d updated, %d skipped in %s\n",
		res.From, res.To, res.Total, len(res.Updated), len(res.Skipped), res.Duration.Round(time.Millisecond))
	return nil
}
