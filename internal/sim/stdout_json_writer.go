package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"vanet-sim/internal/telemetry"
)

// JSONStdoutWriter prints rows as JSON lines to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

func (w *JSONStdoutWriter) print(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// WriteMetrics outputs a metrics row in JSON format.
func (w *JSONStdoutWriter) WriteMetrics(row telemetry.MetricsRow) error {
	return w.print(row)
}

// WriteMetricsBatch outputs multiple metrics rows in JSON format.
func (w *JSONStdoutWriter) WriteMetricsBatch(rows []telemetry.MetricsRow) error {
	for _, r := range rows {
		if err := w.WriteMetrics(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteVehicle outputs a vehicle row in JSON format.
func (w *JSONStdoutWriter) WriteVehicle(row telemetry.VehicleRow) error {
	return w.print(row)
}

// WriteState outputs a state transition in JSON format.
func (w *JSONStdoutWriter) WriteState(row telemetry.SimulationStateRow) error {
	return w.print(row)
}
