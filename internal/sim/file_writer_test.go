package sim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vanet-sim/internal/telemetry"
)

func TestFileWriter(t *testing.T) {
	dir := t.TempDir()
	ts := time.Unix(0, 0).UTC()
	pdr := 1.0
	mRow := telemetry.MetricsRow{RunID: "r1", Strategy: "all", PacketsSent: 1, PacketsDelivered: 1, PDR: &pdr, DropReasons: map[string]int{}, Timestamp: ts}
	vRow := telemetry.VehicleRow{RunID: "r1", VehicleID: 3, Tick: 2, X: 10, Y: 20, Speed: 15, Neighbors: 1, Timestamp: ts}
	sRow := telemetry.SimulationStateRow{RunID: "r1", From: "idle", To: "running", Timestamp: ts}

	mPath := filepath.Join(dir, "metrics.jsonl")
	vPath := filepath.Join(dir, "vehicles.jsonl")
	sPath := filepath.Join(dir, "state.jsonl")
	fw, err := NewFileWriter(mPath, vPath, sPath)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	if err := fw.WriteMetricsBatch([]telemetry.MetricsRow{mRow, mRow}); err != nil {
		t.Fatalf("WriteMetricsBatch: %v", err)
	}
	if err := fw.WriteVehicles([]telemetry.VehicleRow{vRow}); err != nil {
		t.Fatalf("WriteVehicles: %v", err)
	}
	if err := fw.WriteState(sRow); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := func(path string) []string {
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		return strings.Split(strings.TrimSpace(string(b)), "\n")
	}
	if got := lines(mPath); len(got) != 2 {
		t.Fatalf("expected 2 metrics lines, got %d", len(got))
	}
	var gotV telemetry.VehicleRow
	if err := json.Unmarshal([]byte(lines(vPath)[0]), &gotV); err != nil {
		t.Fatalf("decode vehicle: %v", err)
	}
	if gotV.VehicleID != 3 || gotV.Neighbors != 1 {
		t.Fatalf("unexpected vehicle row: %#v", gotV)
	}
	var gotS telemetry.SimulationStateRow
	if err := json.Unmarshal([]byte(lines(sPath)[0]), &gotS); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if gotS.To != "running" {
		t.Fatalf("unexpected state row: %#v", gotS)
	}
}

func TestFileWriterOptionalPaths(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWriter(filepath.Join(dir, "metrics.jsonl"), "", "")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	defer fw.Close()
	if err := fw.WriteVehicle(telemetry.VehicleRow{}); err != nil {
		t.Fatalf("WriteVehicle without file: %v", err)
	}
	if err := fw.WriteState(telemetry.SimulationStateRow{}); err != nil {
		t.Fatalf("WriteState without file: %v", err)
	}
}

func TestFileWriterBadPath(t *testing.T) {
	if _, err := NewFileWriter(filepath.Join(t.TempDir(), "missing", "m.jsonl"), "", ""); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
