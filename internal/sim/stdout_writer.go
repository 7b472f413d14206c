// Writer selection for STDOUT
package sim

import (
	"os"

	"vanet-sim/internal/config"

	"golang.org/x/term"
)

// NewStdoutWriter returns a colorized writer when STDOUT is a terminal and a
// JSON lines writer otherwise, so piped output stays machine readable.
func NewStdoutWriter(cfg *config.SimulationConfig) MetricsWriter {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return NewColorStdoutWriter(cfg)
	}
	return NewJSONStdoutWriter()
}
