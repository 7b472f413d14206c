package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"vanet-sim/internal/telemetry"
)

type mockGreptimeClient struct {
	table *table.Table
	err   error
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	if len(tables) > 0 {
		m.table = tables[0]
	}
	return &gpb.GreptimeResponse{}, m.err
}

func TestGreptimeWriterMetricsDropReasonsJSON(t *testing.T) {
	pdr := 0.5
	rows := []telemetry.MetricsRow{{
		RunID:       "r1",
		Strategy:    "all",
		PacketsSent: 2,
		PDR:         &pdr,
		DropReasons: map[string]int{"void": 1},
		Timestamp:   time.Unix(0, 0).UTC(),
	}}
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, metricsTable: "vanet_metrics"}
	if err := w.WriteMetricsBatch(rows); err != nil {
		t.Fatalf("WriteMetricsBatch: %v", err)
	}
	if m.table == nil {
		t.Fatalf("expected table to be captured")
	}
	schema := m.table.GetRows().Schema
	idx := -1
	for i, col := range schema {
		if col.ColumnName == "drop_reasons" {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatalf("drop_reasons column missing")
	}
	if schema[idx].Datatype != gpb.ColumnDataType_JSON {
		t.Fatalf("drop_reasons column type = %v, want %v", schema[idx].Datatype, gpb.ColumnDataType_JSON)
	}
	got := m.table.GetRows().Rows[0].Values[idx].GetStringValue()
	if got != `{"void":1}` {
		t.Fatalf("drop_reasons = %s", got)
	}
}

func TestGreptimeWriterVehicles(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, vehicleTable: "vanet_vehicles"}
	rows := []telemetry.VehicleRow{{RunID: "r1", VehicleID: 1}, {RunID: "r1", VehicleID: 2}}
	if err := w.WriteVehicles(rows); err != nil {
		t.Fatalf("WriteVehicles: %v", err)
	}
	if n := len(m.table.GetRows().Rows); n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
}

func TestGreptimeWriterError(t *testing.T) {
	m := &mockGreptimeClient{err: errors.New("unavailable")}
	w := &GreptimeDBWriter{client: m, metricsTable: "vanet_metrics"}
	if err := w.WriteMetrics(telemetry.MetricsRow{Timestamp: time.Unix(0, 0)}); err == nil {
		t.Fatalf("expected error")
	}
	if err := w.WriteMetricsBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		host string
		port int
		err  bool
	}{
		{"localhost:4001", "localhost", 4001, false},
		{"db.internal", "db.internal", defaultGreptimePort, false},
		{"db:abc", "", 0, true},
	}
	for _, tt := range tests {
		host, port, err := splitEndpoint(tt.in)
		if (err != nil) != tt.err {
			t.Fatalf("%s: err = %v", tt.in, err)
		}
		if !tt.err && (host != tt.host || port != tt.port) {
			t.Fatalf("%s: got %s:%d", tt.in, host, port)
		}
	}
}
