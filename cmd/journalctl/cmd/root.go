package cmd

import (
	"fmt"

	"github.com/hustariz/rascarobingo/internal/config"
	"github.com/hustariz/rascarobingo/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configDir string
	cfg       config.Config
	log       *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "journalctl",
	Short: "Operate the trading journal",
	Long: `journalctl operates the trading journal.

It can:
  - reset the daily risk counters of every user (for an external cron)
  - show the caller's risk profile and trades through the API
  - close a trade as TARGET_HIT, STOPLOSS_HIT or CLOSED
  - mint a bearer token for a user`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.LoadConfig(configDir); err != nil {
			return fmt.Errorf("could not load config: %w", err)
		}
		if log, err = logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format); err != nil {
			return fmt.Errorf("could not initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "./configs", "directory holding config.yml")
}
