package sim

import "vanet-sim/internal/telemetry"

// StateWriter handles controller state transition rows. A MetricsWriter that
// also implements StateWriter receives them automatically.
type StateWriter interface {
	WriteState(telemetry.SimulationStateRow) error
}
