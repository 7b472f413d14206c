package scenario

import "vanet-sim/internal/config"

func intp(v int) *int { return &v }

// scripted returns a config for hand-placed vehicles: no random traffic, no contention.
func scripted(strategy config.Strategy, radioRange float64) config.SimulationConfig {
	cfg := config.Default()
	cfg.Strategy = strategy
	cfg.RadioRange = radioRange
	cfg.TrafficRatePerTick = 0
	cfg.Congestion = 0
	return cfg
}

// BuiltIn returns the predefined scenarios.
func BuiltIn() map[string]Scenario {
	outOfRange := scripted(config.TopologyBased, 150)
	outOfRange.TTLSeconds = 3

	emptyRoad := config.Default()
	emptyRoad.Density = 0

	return map[string]Scenario{
		"adjacent-delivery": {
			Name:        "adjacent-delivery",
			Description: "Two parked vehicles within radio range exchange one packet in a single hop.",
			Config:      scripted(config.TopologyBased, 150),
			Vehicles: []Vehicle{
				{ID: 0, X: 100, Y: 200},
				{ID: 1, X: 150, Y: 200},
			},
			Packets: []Injection{{AtTick: 0, Src: 0, Dst: 1, Size: 512}},
			Ticks:   2,
			Expect:  &Expect{Sent: intp(1), Delivered: intp(1), Dropped: intp(0)},
		},
		"out-of-range": {
			Name:        "out-of-range",
			Description: "Two parked vehicles beyond radio range; the packet waits until its 3 s budget runs out.",
			Config:      outOfRange,
			Vehicles: []Vehicle{
				{ID: 0, X: 100, Y: 200},
				{ID: 1, X: 400, Y: 200},
			},
			Packets: []Injection{{AtTick: 0, Src: 0, Dst: 1, Size: 512}},
			Ticks:   5,
			Expect: &Expect{
				Sent:        intp(1),
				Delivered:   intp(0),
				Dropped:     intp(1),
				DropReasons: map[string]int{"ttl_expired": 1},
			},
		},
		"relay-chain": {
			Name:        "relay-chain",
			Description: "Five parked vehicles in a line relay a packet end to end with hybrid routing.",
			Config:      scripted(config.Hybrid, 120),
			Vehicles: []Vehicle{
				{ID: 0, X: 50, Y: 200},
				{ID: 1, X: 150, Y: 200},
				{ID: 2, X: 250, Y: 200},
				{ID: 3, X: 350, Y: 200},
				{ID: 4, X: 450, Y: 200},
			},
			Packets: []Injection{{AtTick: 0, Src: 0, Dst: 4, Size: 512}},
			Ticks:   3,
			Expect:  &Expect{Sent: intp(1), Delivered: intp(1), Dropped: intp(0)},
		},
		"empty-road": {
			Name:        "empty-road",
			Description: "Density zero: no vehicles, so no traffic and no defined delivery ratio.",
			Config:      emptyRoad,
			Ticks:       5,
			Expect:      &Expect{Sent: intp(0), Delivered: intp(0), Dropped: intp(0)},
		},
	}
}
