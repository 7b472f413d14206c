package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vanet-sim/internal/config"
	"vanet-sim/internal/logging"
	"vanet-sim/internal/scenario"
	"vanet-sim/internal/sim"
)

var (
	scenarioName string
	scenarioFile string
	scenarioList bool
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Play a scripted scenario and check its expected outcome",
	Long:  "scenario runs a built-in (--name) or YAML (--file) scenario and exits non-zero when the outcome does not match its expectations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scenarioList {
			for _, name := range scenario.Names() {
				fmt.Printf("%-20s %s\n", name, scenario.BuiltIn()[name].Description)
			}
			return nil
		}
		sc, err := pickScenario(scenarioName, scenarioFile)
		if err != nil {
			return err
		}
		simulator, err := sim.NewSimulator(runID(), sc.Config, nil, nil)
		if err != nil {
			return err
		}
		simulator.SetLogger(logging.FromContext(cmd.Context()))
		res, err := sim.RunScenario(cmd.Context(), simulator, sc)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		if !res.Passed {
			return fmt.Errorf("scenario %s failed: %v", res.Name, res.Failures)
		}
		return nil
	},
}

func pickScenario(name, file string) (scenario.Scenario, error) {
	switch {
	case name != "" && file != "":
		return scenario.Scenario{}, fmt.Errorf("%w: use either --name or --file", config.ErrInvalidConfig)
	case file != "":
		sc, err := scenario.Load(file)
		if err != nil {
			return scenario.Scenario{}, err
		}
		return *sc, nil
	case name != "":
		sc, ok := scenario.BuiltIn()[name]
		if !ok {
			return scenario.Scenario{}, fmt.Errorf("%w: unknown scenario %q, available: %v", config.ErrInvalidConfig, name, scenario.Names())
		}
		return sc, nil
	}
	return scenario.Scenario{}, fmt.Errorf("%w: --name or --file required", config.ErrInvalidConfig)
}

func init() {
	scenarioCmd.Flags().StringVar(&scenarioName, "name", "", "Name of a built-in scenario")
	scenarioCmd.Flags().StringVar(&scenarioFile, "file", "", "Path to a scenario YAML file")
	scenarioCmd.Flags().BoolVar(&scenarioList, "list", false, "List built-in scenarios")
}
