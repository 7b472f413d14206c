package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vanet-sim/internal/logging"
	"vanet-sim/internal/sim"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a metrics log file",
	Long:  "replay feeds metrics rows from a JSONL log file back into GreptimeDB or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		writer, cleanup, err := newMetricsWriter(nil, replayPrintOnly)
		if err != nil {
			return err
		}
		defer cleanup()
		n, err := sim.ReplayLogFile(cmd.Context(), replayInput, writer, replaySpeed)
		logging.FromContext(cmd.Context()).Info("replay finished", "rows", n, "input", replayInput)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to metrics log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print metrics to STDOUT instead of writing to DB")
	replayCmd.MarkFlagRequired("input")
}
