package main

import (
	"io"
	"log/slog"
	"os"

	"vanet-sim/internal/config"
	"vanet-sim/internal/sim"

	"github.com/google/uuid"
)

// newWriters sets up metrics and vehicle writers based on flags and env vars.
// It returns the writers and a cleanup function to close any resources.
// extra writers, e.g. the Prometheus collector, receive metrics and state rows too.
func newWriters(cfg *config.SimulationConfig, printOnly bool, logFile string, extra ...sim.MetricsWriter) (sim.MetricsWriter, sim.VehicleWriter, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				slog.Error("close writer", "err", err)
			}
		}
	}

	writer, vehicleWriter, err := baseWriters(cfg, printOnly)
	if err != nil {
		return nil, nil, nil, err
	}
	if c, ok := writer.(io.Closer); ok {
		closers = append(closers, c)
	}

	mws := []sim.MetricsWriter{writer}
	var vws []sim.VehicleWriter
	if vehicleWriter != nil {
		vws = append(vws, vehicleWriter)
	}
	if broker := os.Getenv("MQTT_BROKER"); broker != "" && !printOnly {
		topic := os.Getenv("MQTT_TOPIC")
		if topic == "" {
			topic = "vanet"
		}
		clientID := runID()
		if clientID == "" {
			clientID = uuid.NewString()
		}
		mq, err := sim.NewMQTTWriter(broker, "vanet-sim-"+clientID, topic)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		mws = append(mws, mq)
		closers = append(closers, mq)
	}
	if logFile != "" {
		fw, err := sim.NewFileWriter(logFile, logFile+".vehicles", logFile+".state")
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		mws = append(mws, fw)
		vws = append(vws, fw)
		closers = append(closers, fw)
	}
	mws = append(mws, extra...)

	if len(mws) == 1 && len(vws) <= 1 {
		return writer, vehicleWriter, cleanup, nil
	}
	mw := sim.NewMultiWriter(mws, vws)
	if len(vws) == 0 {
		return mw, nil, cleanup, nil
	}
	return mw, mw, cleanup, nil
}

// baseWriters chooses the underlying writers based on printOnly flag and env vars.
func baseWriters(cfg *config.SimulationConfig, printOnly bool) (sim.MetricsWriter, sim.VehicleWriter, error) {
	if printOnly || os.Getenv("GREPTIMEDB_ENDPOINT") == "" {
		w := sim.NewStdoutWriter(cfg)
		// vehicle rows would flood a terminal, only JSON output carries them
		if vw, ok := w.(sim.VehicleWriter); ok {
			return w, vw, nil
		}
		return w, nil, nil
	}

	endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
	database := os.Getenv("GREPTIMEDB_DATABASE")
	if database == "" {
		database = "public"
	}
	w, err := sim.NewGreptimeDBWriter(endpoint, database)
	if err != nil {
		return nil, nil, err
	}
	return w, w, nil
}

// newMetricsWriter creates a metrics writer without vehicle handling.
func newMetricsWriter(cfg *config.SimulationConfig, printOnly bool) (sim.MetricsWriter, func(), error) {
	w, _, cleanup, err := newWriters(cfg, printOnly, "")
	return w, cleanup, err
}

// runID returns RUN_ID or "" to let the simulator pick one.
func runID() string {
	return os.Getenv("RUN_ID")
}
