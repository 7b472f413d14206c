// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Strategy names a routing strategy. Packets carry the strategy they were created with.
type Strategy string

const (
	TopologyBased Strategy = "topology_based"
	Geographical  Strategy = "geographical"
	Hybrid        Strategy = "hybrid"
)

// Strategies lists all known strategies in a stable order.
var Strategies = []Strategy{TopologyBased, Geographical, Hybrid}

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case TopologyBased, Geographical, Hybrid:
		return true
	}
	return false
}

// Field is the size of the simulated road area.
type Field struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// Routing holds the tuning knobs of the routing strategies.
type Routing struct {
	TopologyRefreshTicks   int  `yaml:"topology_refresh_ticks" json:"topology_refresh_ticks"`
	ControlBytesPerVehicle int  `yaml:"control_bytes_per_vehicle" json:"control_bytes_per_vehicle"`
	VoidTicks              int  `yaml:"void_ticks" json:"void_ticks"`
	HybridDensityThreshold int  `yaml:"hybrid_density_threshold" json:"hybrid_density_threshold"`
	AllowLoops             bool `yaml:"allow_loops" json:"allow_loops"`
}

// SimulationConfig is the root configuration of a simulation run.
type SimulationConfig struct {
	Seed               int64    `yaml:"seed" json:"seed"`
	MaxVehicles        int      `yaml:"max_vehicles" json:"max_vehicles"`
	Density            float64  `yaml:"density" json:"density"`
	Field              Field    `yaml:"field" json:"field"`
	RadioRange         float64  `yaml:"radio_range" json:"radio_range"`
	SpeedMin           float64  `yaml:"speed_min" json:"speed_min"`
	SpeedMax           float64  `yaml:"speed_max" json:"speed_max"`
	Strategy           Strategy `yaml:"strategy" json:"strategy"`
	TrafficRatePerTick float64  `yaml:"traffic_rate_per_tick" json:"traffic_rate_per_tick"`
	PayloadBytes       int      `yaml:"payload_bytes" json:"payload_bytes"`
	TTLHops            int      `yaml:"ttl_hops" json:"ttl_hops"`
	TTLSeconds         float64  `yaml:"ttl_seconds" json:"ttl_seconds"`
	MaxWaitSeconds     float64  `yaml:"max_wait_seconds" json:"max_wait_seconds"`
	TickSeconds        float64  `yaml:"tick_seconds" json:"tick_seconds"`
	TransmissionDelay  float64  `yaml:"transmission_delay" json:"transmission_delay"`
	Congestion         float64  `yaml:"congestion" json:"congestion"`
	ReportInterval     float64  `yaml:"report_interval" json:"report_interval"`
	Routing            Routing  `yaml:"routing" json:"routing"`
}

// Default returns the configuration used when no file is given:
// 20 vehicles at most on a 600x400 field moving at 2-7 units/s.
func Default() SimulationConfig {
	return SimulationConfig{
		Seed:               1,
		MaxVehicles:        20,
		Density:            0.5,
		Field:              Field{Width: 600, Height: 400},
		RadioRange:         150,
		SpeedMin:           2,
		SpeedMax:           7,
		Strategy:           Hybrid,
		TrafficRatePerTick: 1,
		PayloadBytes:       512,
		TTLHops:            16,
		TTLSeconds:         10,
		MaxWaitSeconds:     5,
		TickSeconds:        1,
		TransmissionDelay:  0.01,
		Congestion:         0.3,
		ReportInterval:     1,
		Routing: Routing{
			TopologyRefreshTicks:   5,
			ControlBytesPerVehicle: 64,
			VoidTicks:              3,
			HybridDensityThreshold: 4,
		},
	}
}

// VehicleCount is the population implied by density and max vehicles.
func (c SimulationConfig) VehicleCount() int {
	return VehicleCount(c.Density, c.MaxVehicles)
}

// VehicleCount returns floor(density * maxVehicles).
func VehicleCount(density float64, maxVehicles int) int {
	if density <= 0 || maxVehicles <= 0 {
		return 0
	}
	return int(density * float64(maxVehicles))
}

// Validate checks every bound and returns an error wrapping ErrInvalidConfig.
func (c SimulationConfig) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.MaxVehicles >= 0, "max_vehicles must be >= 0, got %d", c.MaxVehicles)
	check(c.Density >= 0 && c.Density <= 1, "density must be in [0,1], got %v", c.Density)
	check(c.Field.Width > 0 && c.Field.Height > 0, "field must be positive, got %vx%v", c.Field.Width, c.Field.Height)
	check(c.RadioRange > 0, "radio_range must be > 0, got %v", c.RadioRange)
	check(c.SpeedMin >= 0, "speed_min must be >= 0, got %v", c.SpeedMin)
	check(c.SpeedMax >= c.SpeedMin, "speed_max (%v) must be >= speed_min (%v)", c.SpeedMax, c.SpeedMin)
	check(c.Strategy.Valid(), "unknown strategy %q", c.Strategy)
	check(c.TrafficRatePerTick >= 0, "traffic_rate_per_tick must be >= 0, got %v", c.TrafficRatePerTick)
	check(c.PayloadBytes > 0, "payload_bytes must be > 0, got %d", c.PayloadBytes)
	check(c.TTLHops >= 1, "ttl_hops must be >= 1, got %d", c.TTLHops)
	check(c.TTLSeconds > 0, "ttl_seconds must be > 0, got %v", c.TTLSeconds)
	check(c.MaxWaitSeconds > 0, "max_wait_seconds must be > 0, got %v", c.MaxWaitSeconds)
	check(c.TickSeconds > 0, "tick_seconds must be > 0, got %v", c.TickSeconds)
	check(c.TransmissionDelay >= 0, "transmission_delay must be >= 0, got %v", c.TransmissionDelay)
	check(c.Congestion >= 0 && c.Congestion <= 1, "congestion must be in [0,1], got %v", c.Congestion)
	check(c.ReportInterval > 0, "report_interval must be > 0, got %v", c.ReportInterval)
	check(c.Routing.TopologyRefreshTicks >= 1, "routing.topology_refresh_ticks must be >= 1, got %d", c.Routing.TopologyRefreshTicks)
	check(c.Routing.ControlBytesPerVehicle >= 0, "routing.control_bytes_per_vehicle must be >= 0, got %d", c.Routing.ControlBytesPerVehicle)
	check(c.Routing.VoidTicks >= 0, "routing.void_ticks must be >= 0, got %d", c.Routing.VoidTicks)
	check(c.Routing.HybridDensityThreshold >= 0, "routing.hybrid_density_threshold must be >= 0, got %d", c.Routing.HybridDensityThreshold)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Load loads YAML config on top of the defaults and validates it against a CUE schema.
// An empty cueSchemaPath skips schema validation.
func Load(configPath, cueSchemaPath string) (*SimulationConfig, error) {
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("loaded configuration", "path", configPath, "strategy", cfg.Strategy, "max_vehicles", cfg.MaxVehicles, "density", cfg.Density)

	return &cfg, nil
}
