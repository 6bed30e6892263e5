package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/dualmomentum/internal/config"
)

var (
	runConfigPath  string
	runOutputPath  string
	runTimeout     time.Duration
	runSummaryOnly bool
)

// runCmd executes one simulation from a YAML configuration file and
// writes the result as JSON.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backtest from a configuration file",
	Long: `Run a single dual-momentum simulation described by a YAML configuration
file and print the result as JSON.

Example usage:
  dualmomentum run --config portfolio.yaml
  dualmomentum run --config portfolio.yaml --summary-only
  dualmomentum run --config portfolio.yaml --output result.json`,
	RunE: runSimulation,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to the simulation configuration YAML (required)")
	runCmd.Flags().StringVar(&runOutputPath, "output", "", "Write the result JSON to this file instead of stdout")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Minute, "Overall simulation timeout")
	runCmd.Flags().BoolVar(&runSummaryOnly, "summary-only", false, "Print only the summary, not the full monthly series")
	_ = runCmd.MarkFlagRequired("config")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadSimulation(runConfigPath)
	if err != nil {
		return err
	}

	pipe, err := buildPipeline()
	if err != nil {
		return err
	}
	defer pipe.Store.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	result, err := pipe.Runner.Run(ctx, cfg)
	if err != nil {
		return err
	}

	var payload interface{} = result
	if runSummaryOnly {
		payload = result.Summary
	}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	if runOutputPath != "" {
		return os.WriteFile(runOutputPath, append(out, '\n'), 0o644)
	}
	fmt.Println(string(out))
	return nil
}
