package scenario

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"vanet-sim/internal/config"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run: fixed vehicles, timed packet injections and
// the outcome expected after Ticks ticks.
type Scenario struct {
	Name        string                  `yaml:"name,omitempty"`
	Description string                  `yaml:"description,omitempty"`
	Config      config.SimulationConfig `yaml:"config"`
	Vehicles    []Vehicle               `yaml:"vehicles"`
	Packets     []Injection             `yaml:"packets"`
	Ticks       int                     `yaml:"ticks"`
	Expect      *Expect                 `yaml:"expect,omitempty"`
}

// Vehicle places one vehicle. Heading is in radians.
type Vehicle struct {
	ID      int     `yaml:"id"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Speed   float64 `yaml:"speed,omitempty"`
	Heading float64 `yaml:"heading,omitempty"`
}

// Injection sends a packet right after the given tick has been processed.
// Tick 0 injects before the first step.
type Injection struct {
	AtTick int `yaml:"at_tick"`
	Src    int `yaml:"src"`
	Dst    int `yaml:"dst"`
	Size   int `yaml:"size,omitempty"`
}

// Expect lists the cumulative outcome a scenario must reach. Nil fields are not checked.
type Expect struct {
	Sent        *int           `yaml:"sent,omitempty"`
	Delivered   *int           `yaml:"delivered,omitempty"`
	Dropped     *int           `yaml:"dropped,omitempty"`
	DropReasons map[string]int `yaml:"drop_reasons,omitempty"`
}

// Load reads a YAML scenario definition from disk. Config keys not set in
// the file keep their defaults.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s := Scenario{Config: config.Default()}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that injections reference placed vehicles and the config is sound.
func (s *Scenario) Validate() error {
	var errs []error
	if err := s.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	if s.Ticks < 0 {
		errs = append(errs, fmt.Errorf("ticks must be >= 0, got %d", s.Ticks))
	}
	if len(s.Vehicles) > 0 {
		ids := make(map[int]bool, len(s.Vehicles))
		for _, v := range s.Vehicles {
			if ids[v.ID] {
				errs = append(errs, fmt.Errorf("duplicate vehicle id %d", v.ID))
			}
			ids[v.ID] = true
		}
		for i, p := range s.Packets {
			if !ids[p.Src] || !ids[p.Dst] {
				errs = append(errs, fmt.Errorf("packet %d references unknown vehicle (%d -> %d)", i, p.Src, p.Dst))
			}
		}
	}
	for i, p := range s.Packets {
		if p.Src == p.Dst {
			errs = append(errs, fmt.Errorf("packet %d has identical source and destination %d", i, p.Src))
		}
		if p.AtTick < 0 || p.AtTick > s.Ticks {
			errs = append(errs, fmt.Errorf("packet %d at_tick %d outside [0,%d]", i, p.AtTick, s.Ticks))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: scenario %q: %w", config.ErrInvalidConfig, s.Name, errors.Join(errs...))
}

// InjectionsAt returns the packets scheduled right after tick, in file order.
func (s *Scenario) InjectionsAt(tick int) []Injection {
	var out []Injection
	for _, p := range s.Packets {
		if p.AtTick == tick {
			out = append(out, p)
		}
	}
	return out
}

// Names returns the built-in scenario names in sorted order.
func Names() []string {
	b := BuiltIn()
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
