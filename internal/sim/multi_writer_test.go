package sim

import (
	"errors"
	"testing"

	"vanet-sim/internal/telemetry"
)

type batchCollectWriter struct {
	collectWriter
	batches int
}

func (b *batchCollectWriter) WriteMetricsBatch(rows []telemetry.MetricsRow) error {
	b.batches++
	b.rows = append(b.rows, rows...)
	return nil
}

func (b *batchCollectWriter) WriteVehicles(rows []telemetry.VehicleRow) error {
	b.batches++
	b.vehicles = append(b.vehicles, rows...)
	return nil
}

type metricsOnly struct{ n int }

func (m *metricsOnly) WriteMetrics(telemetry.MetricsRow) error {
	m.n++
	return nil
}

type failingWriter struct{}

func (failingWriter) WriteMetrics(telemetry.MetricsRow) error { return errors.New("boom") }

func TestMultiWriterFanOut(t *testing.T) {
	plain := &collectWriter{}
	batch := &batchCollectWriter{}
	only := &metricsOnly{}
	mw := NewMultiWriter([]MetricsWriter{plain, batch, only}, []VehicleWriter{plain, batch})

	rows := []telemetry.MetricsRow{{Strategy: "all"}, {Strategy: "hybrid"}}
	if err := mw.WriteMetricsBatch(rows); err != nil {
		t.Fatalf("WriteMetricsBatch: %v", err)
	}
	if len(plain.rows) != 2 || len(batch.rows) != 2 || only.n != 2 {
		t.Fatalf("rows not fanned out: plain=%d batch=%d only=%d", len(plain.rows), len(batch.rows), only.n)
	}
	if batch.batches != 1 {
		t.Fatalf("expected batch path once, got %d", batch.batches)
	}

	if err := mw.WriteVehicles([]telemetry.VehicleRow{{VehicleID: 1}, {VehicleID: 2}}); err != nil {
		t.Fatalf("WriteVehicles: %v", err)
	}
	if len(plain.vehicles) != 2 || len(batch.vehicles) != 2 {
		t.Fatalf("vehicles not fanned out")
	}

	if err := mw.WriteState(telemetry.SimulationStateRow{To: "running"}); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	if len(plain.states) != 1 || len(batch.states) != 1 {
		t.Fatalf("state rows not forwarded to state writers")
	}
}

func TestMultiWriterError(t *testing.T) {
	mw := NewMultiWriter([]MetricsWriter{failingWriter{}}, nil)
	if err := mw.WriteMetrics(telemetry.MetricsRow{}); err == nil {
		t.Fatalf("expected error")
	}
}
