package scenario

import (
	"errors"
	"testing"

	"vanet-sim/internal/config"
)

func TestLoadScenario(t *testing.T) {
	sc, err := Load("testdata/simple.yaml")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if sc.Name != "example" {
		t.Fatalf("unexpected name %s", sc.Name)
	}
	if sc.Description != "basic test scenario" {
		t.Fatalf("unexpected description %s", sc.Description)
	}
	if sc.Config.Strategy != config.Geographical || sc.Config.RadioRange != 120 {
		t.Fatalf("config overrides not applied: %+v", sc.Config)
	}
	if sc.Config.Field.Width != config.Default().Field.Width {
		t.Fatalf("unset config keys should keep defaults, got field %+v", sc.Config.Field)
	}
	if len(sc.Vehicles) != 3 || sc.Vehicles[2].Speed != 1.5 {
		t.Fatalf("unexpected vehicles: %+v", sc.Vehicles)
	}
	if sc.Expect == nil || sc.Expect.Delivered == nil || *sc.Expect.Delivered != 2 || sc.Expect.Dropped != nil {
		t.Fatalf("unexpected expectations: %+v", sc.Expect)
	}
}

func TestLoadScenarioInvalid(t *testing.T) {
	_, err := Load("testdata/bad.yaml")
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadScenarioMissing(t *testing.T) {
	if _, err := Load("testdata/nope.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestInjectionsAt(t *testing.T) {
	s := Scenario{
		Packets: []Injection{
			{AtTick: 0, Src: 1, Dst: 2},
			{AtTick: 2, Src: 2, Dst: 1},
			{AtTick: 0, Src: 3, Dst: 1},
		},
	}
	got := s.InjectionsAt(0)
	if len(got) != 2 || got[0].Src != 1 || got[1].Src != 3 {
		t.Fatalf("unexpected injections at 0: %+v", got)
	}
	if len(s.InjectionsAt(1)) != 0 {
		t.Fatalf("expected no injections at tick 1")
	}
}

func TestBuiltInScenarios(t *testing.T) {
	names := []string{"adjacent-delivery", "empty-road", "out-of-range", "relay-chain"}
	got := Names()
	if len(got) != len(names) {
		t.Fatalf("expected %d scenarios, got %v", len(names), got)
	}
	arcs := BuiltIn()
	for i, n := range names {
		if got[i] != n {
			t.Fatalf("scenario %d expected %s got %s", i, n, got[i])
		}
		sc := arcs[n]
		if sc.Description == "" {
			t.Fatalf("scenario %s missing description", n)
		}
		if sc.Expect == nil {
			t.Fatalf("scenario %s has no expectations", n)
		}
		if err := sc.Validate(); err != nil {
			t.Fatalf("scenario %s invalid: %v", n, err)
		}
	}
}
