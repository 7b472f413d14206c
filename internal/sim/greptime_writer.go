package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"vanet-sim/internal/telemetry"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

const defaultGreptimePort = 4001

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes metrics and vehicle rows to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client       greptimeClient
	metricsTable string
	vehicleTable string
	log          *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint (host or host:port). Tables are
// created on first write by the gRPC ingester.
func NewGreptimeDBWriter(endpoint, database string) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &GreptimeDBWriter{
		client:       client,
		metricsTable: telemetry.MetricsTableName,
		vehicleTable: telemetry.VehicleTableName,
		log:          slog.Default(),
	}, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	host, p, err := net.SplitHostPort(endpoint)
	if err != nil {
		// no port given
		return endpoint, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("greptimedb endpoint %q: invalid port: %w", endpoint, err)
	}
	return host, port, nil
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func (w *GreptimeDBWriter) metricsSchema() (*table.Table, error) {
	tbl, err := table.New(w.metricsTable)
	if err != nil {
		return nil, err
	}
	cols := []struct {
		name string
		typ  types.ColumnType
	}{
		{"interval_start", types.FLOAT64},
		{"interval_end", types.FLOAT64},
		{"packets_sent", types.INT64},
		{"packets_delivered", types.INT64},
		{"packets_dropped", types.INT64},
		{"pdr", types.FLOAT64},
		{"average_latency", types.FLOAT64},
		{"overhead_ratio", types.FLOAT64},
		{"data_bytes", types.INT64},
		{"control_bytes", types.INT64},
		{"drop_reasons", types.JSON},
		{"vehicles", types.INT64},
	}
	if err := tbl.AddTagColumn("run_id", types.STRING); err != nil {
		return nil, err
	}
	if err := tbl.AddTagColumn("strategy", types.STRING); err != nil {
		return nil, err
	}
	for _, c := range cols {
		if err := tbl.AddFieldColumn(c.name, c.typ); err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	return tbl, nil
}

// WriteMetrics inserts a single metrics row.
func (w *GreptimeDBWriter) WriteMetrics(row telemetry.MetricsRow) error {
	return w.WriteMetricsBatch([]telemetry.MetricsRow{row})
}

// WriteMetricsBatch inserts multiple metrics rows.
func (w *GreptimeDBWriter) WriteMetricsBatch(rows []telemetry.MetricsRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := w.metricsSchema()
	if err != nil {
		return err
	}
	for _, r := range rows {
		reasons, err := json.Marshal(r.DropReasons)
		if err != nil {
			return err
		}
		if err := tbl.AddRow(
			r.RunID, r.Strategy,
			r.IntervalStart, r.IntervalEnd,
			int64(r.PacketsSent), int64(r.PacketsDelivered), int64(r.PacketsDropped),
			optional(r.PDR), optional(r.AverageLatency), optional(r.OverheadRatio),
			int64(r.DataBytes), int64(r.ControlBytes),
			string(reasons), int64(r.Vehicles),
			r.Timestamp,
		); err != nil {
			return err
		}
	}
	return w.write(tbl, w.metricsTable, len(rows))
}

// WriteVehicle inserts a single vehicle row.
func (w *GreptimeDBWriter) WriteVehicle(row telemetry.VehicleRow) error {
	return w.WriteVehicles([]telemetry.VehicleRow{row})
}

// WriteVehicles inserts multiple vehicle rows.
func (w *GreptimeDBWriter) WriteVehicles(rows []telemetry.VehicleRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.vehicleTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("run_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("vehicle_id", types.INT64); err != nil {
		return err
	}
	for _, name := range []string{"x", "y", "speed", "heading", "sim_time"} {
		if err := tbl.AddFieldColumn(name, types.FLOAT64); err != nil {
			return err
		}
	}
	if err := tbl.AddFieldColumn("tick", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("neighbors", types.INT64); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(
			r.RunID, int64(r.VehicleID),
			r.X, r.Y, r.Speed, r.Heading, r.SimTime,
			int64(r.Tick), int64(r.Neighbors),
			r.Timestamp,
		); err != nil {
			return err
		}
	}
	return w.write(tbl, w.vehicleTable, len(rows))
}

func (w *GreptimeDBWriter) write(tbl *table.Table, name string, n int) error {
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		w.logger().Error("greptimedb write failed", "table", name, "err", err)
		return err
	}
	w.logger().Debug("greptimedb write", "table", name, "rows", n)
	return nil
}

func (w *GreptimeDBWriter) logger() *slog.Logger {
	if w.log == nil {
		return slog.Default()
	}
	return w.log
}
