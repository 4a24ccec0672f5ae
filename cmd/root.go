package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/venture-kit/plan-proxy/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "plan-proxy",
	Short: "LLM proxy for business-planning requests",
	Long:  "Accepts structured business-planning requests (ideas, solutions, milestones, plans, search), prompts an upstream model, and normalizes the output into strict schemas with repair and heuristic fallback.",
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
