package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"vanet-sim/internal/admin"
	"vanet-sim/internal/config"
	"vanet-sim/internal/logging"
	"vanet-sim/internal/observability"
	"vanet-sim/internal/sim"
)

var (
	simPrintOnly  bool
	simConfigPath string
	simSchemaPath string
	simTick       time.Duration
	simLogFile    string
	simAdminAddr  string
	simAutoStart  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the real-time VANET simulator",
	Long:  "simulate steps the simulation on a wall-clock ticker and serves the admin API for control, inspection and Prometheus metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.FromContext(cmd.Context())
		cfg, err := config.Load(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		collector, err := observability.NewSimCollector(reg)
		if err != nil {
			return err
		}
		writer, vehicleWriter, cleanup, err := newWriters(cfg, simPrintOnly, simLogFile, collector)
		if err != nil {
			return err
		}
		defer cleanup()

		tickInterval := simTick
		if envTick := os.Getenv("TICK_INTERVAL"); envTick != "" {
			d, err := time.ParseDuration(envTick)
			if err != nil {
				return err
			}
			tickInterval = d
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		simulator, err := sim.NewSimulator(runID(), *cfg, writer, vehicleWriter)
		if err != nil {
			return err
		}
		simulator.SetLogger(log)
		simulator.SetTickInterval(tickInterval)
		if simAutoStart {
			if err := simulator.Start(); err != nil {
				return err
			}
		}

		srv := admin.NewServer(simulator, collector.Handler())
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(ctx, simAdminAddr) }()

		runCtx, stopRun := context.WithCancel(ctx)
		defer stopRun()
		go simulator.Run(runCtx)

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				log.Error("admin server failed", "err", err)
				stopRun()
				_ = simulator.Stop()
				return err
			}
		}
		if err := simulator.Stop(); err != nil {
			return err
		}
		log.Info("vanet simulation stopped", "run_id", simulator.RunID())
		return nil
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simPrintOnly, "print-only", false, "Print metrics to STDOUT instead of writing to DB")
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	simulateCmd.Flags().StringVar(&simSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	simulateCmd.Flags().DurationVar(&simTick, "tick", time.Second, "Wall-clock interval between ticks (e.g. 500ms, 2s)")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export metrics, vehicle and state logs (JSONL)")
	simulateCmd.Flags().StringVar(&simAdminAddr, "admin-addr", ":8080", "Listen address of the admin API")
	simulateCmd.Flags().BoolVar(&simAutoStart, "start", true, "Start running immediately instead of waiting for POST /start")
}
