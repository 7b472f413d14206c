// Output rows with greptime tags
package telemetry

import (
	"maps"
	"os"
	"time"

	"vanet-sim/internal/metrics"
)

// ScopeAll tags metrics rows that aggregate every strategy.
const ScopeAll = "all"

// MetricsRow is one emitted metrics snapshot for one strategy scope.
type MetricsRow struct {
	RunID            string         `json:"run_id"`   // TAG
	Strategy         string         `json:"strategy"` // TAG
	IntervalStart    float64        `json:"interval_start"`
	IntervalEnd      float64        `json:"interval_end"`
	PacketsSent      int            `json:"packets_sent"`
	PacketsDelivered int            `json:"packets_delivered"`
	PacketsDropped   int            `json:"packets_dropped"`
	PDR              *float64       `json:"pdr"`
	AverageLatency   *float64       `json:"average_latency"`
	OverheadRatio    *float64       `json:"overhead_ratio"`
	DataBytes        int            `json:"data_bytes"`
	ControlBytes     int            `json:"control_bytes"`
	DropReasons      map[string]int `json:"drop_reasons"`
	Vehicles         int            `json:"vehicles"`
	Timestamp        time.Time      `json:"ts"` // TIME INDEX
}

// VehicleRow is the state of one vehicle after a tick.
type VehicleRow struct {
	RunID     string    `json:"run_id"`     // TAG
	VehicleID int       `json:"vehicle_id"` // TAG
	Tick      int       `json:"tick"`
	SimTime   float64   `json:"sim_time"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Speed     float64   `json:"speed"`
	Heading   float64   `json:"heading"`
	Neighbors int       `json:"neighbors"`
	Timestamp time.Time `json:"ts"` // TIME INDEX
}

// MetricsTableName holds the GreptimeDB table for metrics rows. It can be
// overridden via GREPTIMEDB_METRICS_TABLE.
var MetricsTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_METRICS_TABLE"); env != "" {
		return env
	}
	return "vanet_metrics"
}()

// VehicleTableName holds the GreptimeDB table for vehicle rows. It can be
// overridden via GREPTIMEDB_VEHICLE_TABLE.
var VehicleTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_VEHICLE_TABLE"); env != "" {
		return env
	}
	return "vanet_vehicles"
}()

func (MetricsRow) TableName() string { return MetricsTableName }

func (VehicleRow) TableName() string { return VehicleTableName }

// SimTimestamp maps simulated seconds onto wall-clock time starting at start.
func SimTimestamp(start time.Time, simSeconds float64) time.Time {
	return start.Add(time.Duration(simSeconds * float64(time.Second))).UTC()
}

// MetricsRows flattens a snapshot into an "all" row followed by one row per strategy.
func MetricsRows(runID string, snap metrics.Snapshot, vehicles int, start time.Time) []MetricsRow {
	ts := SimTimestamp(start, snap.IntervalEnd)
	rows := make([]MetricsRow, 0, len(snap.PerStrategy)+1)
	rows = append(rows, MetricsRow{
		RunID:            runID,
		Strategy:         ScopeAll,
		IntervalStart:    snap.IntervalStart,
		IntervalEnd:      snap.IntervalEnd,
		PacketsSent:      snap.PacketsSent,
		PacketsDelivered: snap.PacketsDelivered,
		PacketsDropped:   snap.PacketsDropped,
		PDR:              snap.PDR,
		AverageLatency:   snap.AverageLatency,
		OverheadRatio:    snap.OverheadRatio,
		DataBytes:        snap.DataBytes,
		ControlBytes:     snap.ControlBytes,
		DropReasons:      maps.Clone(snap.DropReasons),
		Vehicles:         vehicles,
		Timestamp:        ts,
	})
	for _, st := range snap.PerStrategy {
		rows = append(rows, MetricsRow{
			RunID:            runID,
			Strategy:         string(st.Strategy),
			IntervalStart:    snap.IntervalStart,
			IntervalEnd:      snap.IntervalEnd,
			PacketsSent:      st.PacketsSent,
			PacketsDelivered: st.PacketsDelivered,
			PacketsDropped:   st.PacketsDropped,
			PDR:              st.PDR,
			AverageLatency:   st.AverageLatency,
			OverheadRatio:    st.OverheadRatio,
			DataBytes:        st.DataBytes,
			ControlBytes:     st.ControlBytes,
			DropReasons:      maps.Clone(st.DropReasons),
			Vehicles:         vehicles,
			Timestamp:        ts,
		})
	}
	return rows
}
