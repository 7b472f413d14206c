package telemetry

import "time"

// SimulationStateRow records a controller state transition.
type SimulationStateRow struct {
	RunID     string    `json:"run_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Tick      int       `json:"tick"`
	SimTime   float64   `json:"sim_time"`
	Vehicles  int       `json:"vehicles"`
	Strategy  string    `json:"strategy"`
	Timestamp time.Time `json:"ts"`
}
