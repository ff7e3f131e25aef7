package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ghost-audit/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ghost-audit",
	Short: "Fraud-risk index for renewable-energy projects",
	Long:  "Merges project, financing, and governance data, audits each site against a remote-sensing change signal, trains a ghost-risk classifier, and ranks the portfolio by predicted risk.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
