package sim

import (
	"encoding/json"
	"os"

	"vanet-sim/internal/telemetry"
)

// FileWriter writes metrics, vehicle and state rows to JSONL files.
type FileWriter struct {
	metricsFile *os.File
	vehicleFile *os.File
	stateFile   *os.File
	metricsEnc  *json.Encoder
	vehicleEnc  *json.Encoder
	stateEnc    *json.Encoder
}

// NewFileWriter creates a FileWriter. vehiclePath or statePath may be empty to skip those logs.
func NewFileWriter(metricsPath, vehiclePath, statePath string) (*FileWriter, error) {
	mf, err := os.Create(metricsPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{metricsFile: mf, metricsEnc: json.NewEncoder(mf)}
	if vehiclePath != "" {
		vf, err := os.Create(vehiclePath)
		if err != nil {
			fw.Close()
			return nil, err
		}
		fw.vehicleFile = vf
		fw.vehicleEnc = json.NewEncoder(vf)
	}
	if statePath != "" {
		sf, err := os.Create(statePath)
		if err != nil {
			fw.Close()
			return nil, err
		}
		fw.stateFile = sf
		fw.stateEnc = json.NewEncoder(sf)
	}
	return fw, nil
}

// WriteMetrics logs a single metrics row.
func (f *FileWriter) WriteMetrics(row telemetry.MetricsRow) error {
	return f.metricsEnc.Encode(row)
}

// WriteMetricsBatch logs multiple metrics rows.
func (f *FileWriter) WriteMetricsBatch(rows []telemetry.MetricsRow) error {
	for _, r := range rows {
		if err := f.WriteMetrics(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteVehicle logs a single vehicle row, if enabled.
func (f *FileWriter) WriteVehicle(row telemetry.VehicleRow) error {
	if f.vehicleEnc == nil {
		return nil
	}
	return f.vehicleEnc.Encode(row)
}

// WriteVehicles logs multiple vehicle rows.
func (f *FileWriter) WriteVehicles(rows []telemetry.VehicleRow) error {
	for _, r := range rows {
		if err := f.WriteVehicle(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteState logs a simulation state row, if enabled.
func (f *FileWriter) WriteState(row telemetry.SimulationStateRow) error {
	if f.stateEnc == nil {
		return nil
	}
	return f.stateEnc.Encode(row)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	for _, file := range []*os.File{f.metricsFile, f.vehicleFile, f.stateFile} {
		if file == nil {
			continue
		}
		if e := file.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
