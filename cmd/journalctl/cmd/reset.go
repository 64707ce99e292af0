package cmd

import (
	"fmt"

	"github.com/hustariz/rascarobingo/internal/database"
	"github.com/hustariz/rascarobingo/internal/lock"
	"github.com/hustariz/rascarobingo/internal/scheduler"
	"github.com/hustariz/rascarobingo/internal/store"
	"github.com/spf13/cobra"
)

var resetDailyCmd = &cobra.Command{
	Use:   "reset-daily",
	Short: "Reset every user's daily stats, stop-loss counter and streak",
	Long: `reset-daily runs the nightly reset once against the configured database.

Use it from an external cron when the server runs with scheduler.enabled=false.
With lock.type=redis it takes the same per-user locks as the server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewDatabase(&cfg.Database)
		if err != nil {
			return err
		}
		locker, err := lock.New(cfg.Lock, log)
		if err != nil {
			return err
		}
		defer locker.Close()

		reset := scheduler.NewDailyReset(log, store.New(db), locker, cfg.Scheduler.Spec, nil)
		n, err := reset.ResetAll(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "reset %d users\n", n)
		return err
	},
}

func init() {
	rootCmd.AddCommand(resetDailyCmd)
}
