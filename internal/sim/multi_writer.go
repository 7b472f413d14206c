package sim

import "vanet-sim/internal/telemetry"

// MultiWriter fans out metrics, vehicle and state rows to multiple writers.
type MultiWriter struct {
	metricWriters  []MetricsWriter
	vehicleWriters []VehicleWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(mws []MetricsWriter, vws []VehicleWriter) *MultiWriter {
	return &MultiWriter{metricWriters: mws, vehicleWriters: vws}
}

// WriteMetrics sends a metrics row to all writers.
func (mw *MultiWriter) WriteMetrics(row telemetry.MetricsRow) error {
	for _, w := range mw.metricWriters {
		if err := w.WriteMetrics(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteMetricsBatch sends multiple metrics rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteMetricsBatch(rows []telemetry.MetricsRow) error {
	for _, w := range mw.metricWriters {
		if bw, ok := w.(batchMetricsWriter); ok {
			if err := bw.WriteMetricsBatch(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.WriteMetrics(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteVehicle sends a vehicle row to all vehicle writers.
func (mw *MultiWriter) WriteVehicle(row telemetry.VehicleRow) error {
	for _, w := range mw.vehicleWriters {
		if err := w.WriteVehicle(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteVehicles sends multiple vehicle rows to all vehicle writers, using batch if supported.
func (mw *MultiWriter) WriteVehicles(rows []telemetry.VehicleRow) error {
	for _, w := range mw.vehicleWriters {
		if bw, ok := w.(batchVehicleWriter); ok {
			if err := bw.WriteVehicles(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.WriteVehicle(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteState forwards a state row to every metrics writer that accepts state.
func (mw *MultiWriter) WriteState(row telemetry.SimulationStateRow) error {
	for _, w := range mw.metricWriters {
		sw, ok := w.(StateWriter)
		if !ok {
			continue
		}
		if err := sw.WriteState(row); err != nil {
			return err
		}
	}
	return nil
}
