package main

import (
	"github.com/spf13/cobra"

	"workshop-scheduler/internal/breaks"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Close every break whose expected end has passed, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := setup(ctx, "sweep")
		if err != nil {
			return err
		}
		defer rt.Close()

		n := breaks.NewSweeper(rt.tracker, rt.cfg.Scheduling.BreakSweepInterval, rt.log).SweepOnce(ctx)
		cmd.Printf("closed %d expired break(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
