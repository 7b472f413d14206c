package sim

import (
	"context"
	"fmt"
	"sort"

	"vanet-sim/internal/config"
	"vanet-sim/internal/logging"
	"vanet-sim/internal/metrics"
	"vanet-sim/internal/mobility"
	"vanet-sim/internal/routing"
	"vanet-sim/internal/scenario"
)

// ScenarioResult is the outcome of a scripted run.
type ScenarioResult struct {
	Name     string           `json:"name"`
	Ticks    int              `json:"ticks"`
	Totals   metrics.Snapshot `json:"totals"`
	Passed   bool             `json:"passed"`
	Failures []string         `json:"failures,omitempty"`
}

// PlaceVehicles replaces the random population with explicitly positioned
// vehicles. Only allowed while Idle; routing tables and counters restart.
func (s *Simulator) PlaceVehicles(vs []mobility.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return fmt.Errorf("%w: vehicles can only be placed while idle, state is %s", ErrInvalidState, s.state)
	}
	if err := s.mobility.Place(vs); err != nil {
		return err
	}
	s.cfg.MaxVehicles = len(vs)
	s.cfg.Density = 1
	if len(vs) == 0 {
		s.cfg.Density = 0
	}
	s.strategies = make(map[config.Strategy]routing.Strategy)
	s.agg = metrics.New(s.cfg.ReportInterval)
	s.rebuildGraph()
	s.refreshStrategies()
	return nil
}

// RunScenario plays sc on s: configure, place, inject, step Ticks times,
// stop, and compare the cumulative totals with sc.Expect. s must be Idle; the
// wall-clock ticker of Run is suspended until the scenario returns.
func RunScenario(ctx context.Context, s *Simulator, sc scenario.Scenario) (ScenarioResult, error) {
	log := logging.FromContext(ctx)
	res := ScenarioResult{Name: sc.Name, Ticks: sc.Ticks}
	if err := sc.Validate(); err != nil {
		return res, err
	}
	if err := s.beginScenario(); err != nil {
		return res, err
	}
	defer s.endScenario()

	if err := s.Configure(sc.Config); err != nil {
		return res, err
	}
	if len(sc.Vehicles) > 0 {
		vs := make([]mobility.Vehicle, len(sc.Vehicles))
		for i, v := range sc.Vehicles {
			vs[i] = mobility.Vehicle{
				ID:      v.ID,
				Pos:     mobility.Point{X: v.X, Y: v.Y},
				Speed:   v.Speed,
				Heading: v.Heading,
			}
		}
		if err := s.PlaceVehicles(vs); err != nil {
			return res, err
		}
	}
	if err := injectAll(s, sc.InjectionsAt(0)); err != nil {
		return res, err
	}
	if err := s.Start(); err != nil {
		return res, err
	}
	if err := playTicks(ctx, s, sc); err != nil {
		if stopErr := s.Stop(); stopErr != nil {
			log.Error("stop after failed scenario", "scenario", sc.Name, "err", stopErr)
		}
		return res, err
	}
	res.Totals = s.Snapshot().Totals
	if err := s.Stop(); err != nil {
		return res, err
	}
	res.Failures = checkExpect(sc.Expect, res.Totals)
	res.Passed = len(res.Failures) == 0
	log.Info("scenario finished", "scenario", sc.Name, "passed", res.Passed,
		"sent", res.Totals.PacketsSent, "delivered", res.Totals.PacketsDelivered, "dropped", res.Totals.PacketsDropped)
	return res, nil
}

func playTicks(ctx context.Context, s *Simulator, sc scenario.Scenario) error {
	for tick := 1; tick <= sc.Ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.Step(sc.Config.TickSeconds); err != nil {
			return err
		}
		if err := injectAll(s, sc.InjectionsAt(tick)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) beginScenario() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return fmt.Errorf("%w: scenarios run on an idle simulator, state is %s", ErrInvalidState, s.state)
	}
	if s.scripted {
		return fmt.Errorf("%w: another scenario is running", ErrInvalidState)
	}
	s.scripted = true
	return nil
}

func (s *Simulator) endScenario() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripted = false
}

func injectAll(s *Simulator, ins []scenario.Injection) error {
	for _, in := range ins {
		if _, err := s.Inject(in.Src, in.Dst, in.Size); err != nil {
			return err
		}
	}
	return nil
}

func checkExpect(exp *scenario.Expect, got metrics.Snapshot) []string {
	if exp == nil {
		return nil
	}
	var failures []string
	check := func(name string, want *int, have int) {
		if want != nil && *want != have {
			failures = append(failures, fmt.Sprintf("%s: want %d, got %d", name, *want, have))
		}
	}
	check("sent", exp.Sent, got.PacketsSent)
	check("delivered", exp.Delivered, got.PacketsDelivered)
	check("dropped", exp.Dropped, got.PacketsDropped)
	reasons := make([]string, 0, len(exp.DropReasons))
	for r := range exp.DropReasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		want := exp.DropReasons[r]
		check("drop_reasons."+r, &want, got.DropReasons[r])
	}
	return failures
}
