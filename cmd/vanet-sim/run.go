package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vanet-sim/internal/config"
	"vanet-sim/internal/logging"
	"vanet-sim/internal/sim"
)

var (
	runConfigPath string
	runSchemaPath string
	runSteps      int
	runPrintOnly  bool
	runLogFile    string
	runStrategy   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a fixed number of ticks as fast as possible",
	Long:  "run executes the simulation headless for --steps ticks and prints the cumulative totals as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.FromContext(cmd.Context())
		if runSteps <= 0 {
			return fmt.Errorf("%w: steps must be > 0, got %d", config.ErrInvalidConfig, runSteps)
		}
		cfg := config.Default()
		if runConfigPath != "" {
			loaded, err := config.Load(runConfigPath, runSchemaPath)
			if err != nil {
				return err
			}
			cfg = *loaded
		}
		if runStrategy != "" {
			cfg.Strategy = config.Strategy(runStrategy)
		}

		writer, vehicleWriter, cleanup, err := newWriters(&cfg, runPrintOnly, runLogFile)
		if err != nil {
			return err
		}
		defer cleanup()

		simulator, err := sim.NewSimulator(runID(), cfg, writer, vehicleWriter)
		if err != nil {
			return err
		}
		simulator.SetLogger(log)
		if err := simulator.Start(); err != nil {
			return err
		}
		for i := 0; i < runSteps; i++ {
			if err := cmd.Context().Err(); err != nil {
				break
			}
			if _, err := simulator.Step(cfg.TickSeconds); err != nil {
				return err
			}
		}
		totals := simulator.Snapshot().Totals
		if err := simulator.Stop(); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"run_id": simulator.RunID(), "totals": totals})
	},
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to simulation configuration YAML (defaults are used when empty)")
	runCmd.Flags().StringVar(&runSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	runCmd.Flags().IntVar(&runSteps, "steps", 100, "Number of ticks to simulate")
	runCmd.Flags().BoolVar(&runPrintOnly, "print-only", false, "Print metrics to STDOUT instead of writing to DB")
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "Path to export metrics, vehicle and state logs (JSONL)")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "Override the routing strategy (topology_based, geographical, hybrid)")
}
