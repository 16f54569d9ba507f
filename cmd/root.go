package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oncomatch/trial-screener/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "trial-screener",
	Short: "Clinical trial screening from free-text patient descriptions",
	Long:  "Extracts medical entities from patient descriptions, scores them against a clinical trial registry export, and reports ranked matches with explanations.",
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
