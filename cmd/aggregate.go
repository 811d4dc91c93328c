package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// timeNowUTC exists so command tests can pin the clock.
var timeNowUTC = func() time.Time { return time.Now().UTC() }

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Join metric rows into the public leaderboard",
	Long: `Compose the public leaderboard rows for a month range from the
persisted per-metric rows, apply approved adjustments, and write leader
credits with their reconciliation totals.

Examples:
  # Aggregate the current month
  aggregate

  # Rebuild the public rows from April onward
  aggregate --from 2025-04`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("aggregate"); err != nil {
			return err
		}

		months, err := monthRange(cmd)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		for _, month := range months {
			zap.L().Info("aggregating month", zap.String("month", month.String()))
			if err := e.Aggregator.RunMonth(ctx, month); err != nil {
				return eris.Wrapf(err, "aggregate: %s", month)
			}
		}

		fmt.Printf("Aggregated %d month(s)\n", len(months))
		return nil
	},
}

func init() {
	f := aggregateCmd.Flags()
	f.String("month", "", "single month to aggregate (YYYY-MM, default current)")
	f.String("from", "", "aggregate every month from YYYY-MM through current")

	rootCmd.AddCommand(aggregateCmd)
}
