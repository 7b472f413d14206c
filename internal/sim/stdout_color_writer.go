// ColorStdoutWriter prints human-friendly, colorized metrics to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"vanet-sim/internal/config"
	"vanet-sim/internal/telemetry"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleTime     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleAll      = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	styleGood     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleWarn     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleBad      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleMuted    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleState    = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	strategyStyle = map[string]lipgloss.Style{
		string(config.TopologyBased): lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		string(config.Geographical):  lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		string(config.Hybrid):        lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	}
)

// ColorStdoutWriter prints metrics rows with terminal colors.
type ColorStdoutWriter struct {
	cfg  *config.SimulationConfig
	out  io.Writer
	once sync.Once
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(cfg *config.SimulationConfig) *ColorStdoutWriter {
	return &ColorStdoutWriter{cfg: cfg, out: os.Stdout}
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}
	fmt.Fprintln(w.out, "Simulation Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Strategy:\t%s\n", w.cfg.Strategy)
	fmt.Fprintf(tw, "Vehicles:\t%d of %d (density %.2f)\n", w.cfg.VehicleCount(), w.cfg.MaxVehicles, w.cfg.Density)
	fmt.Fprintf(tw, "Field:\t%.0fx%.0f\n", w.cfg.Field.Width, w.cfg.Field.Height)
	fmt.Fprintf(tw, "Radio Range:\t%.0f\n", w.cfg.RadioRange)
	fmt.Fprintf(tw, "Traffic / tick:\t%.2f\n", w.cfg.TrafficRatePerTick)
	fmt.Fprintf(tw, "TTL:\t%d hops / %.1fs\n", w.cfg.TTLHops, w.cfg.TTLSeconds)
	fmt.Fprintf(tw, "Congestion:\t%.2f\n", w.cfg.Congestion)
	tw.Flush()
	fmt.Fprintln(w.out)
}

func ratio(v *float64, pct bool) string {
	if v == nil {
		return "n/a"
	}
	if pct {
		return fmt.Sprintf("%.1f%%", *v*100)
	}
	return fmt.Sprintf("%.3f", *v)
}

func pdrStyle(v *float64) lipgloss.Style {
	switch {
	case v == nil:
		return styleMuted
	case *v >= 0.8:
		return styleGood
	case *v >= 0.5:
		return styleWarn
	}
	return styleBad
}

// WriteMetrics outputs a single metrics row in colorized format.
func (w *ColorStdoutWriter) WriteMetrics(row telemetry.MetricsRow) error {
	w.once.Do(w.printOverview)

	label := styleAll.Render(fmt.Sprintf("%-14s", row.Strategy))
	if st, ok := strategyStyle[row.Strategy]; ok {
		label = st.Render(fmt.Sprintf("%-14s", row.Strategy))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s ", styleTime.Render(fmt.Sprintf("[t=%7.2f-%7.2f]", row.IntervalStart, row.IntervalEnd)))
	fmt.Fprintf(&b, "%s ", label)
	fmt.Fprintf(&b, "sent=%d delivered=%d dropped=%d ", row.PacketsSent, row.PacketsDelivered, row.PacketsDropped)
	fmt.Fprintf(&b, "%s ", pdrStyle(row.PDR).Render("pdr="+ratio(row.PDR, true)))
	fmt.Fprintf(&b, "latency=%s overhead=%s", ratio(row.AverageLatency, false), ratio(row.OverheadRatio, true))
	if len(row.DropReasons) > 0 {
		reasons := make([]string, 0, len(row.DropReasons))
		for k, v := range row.DropReasons {
			reasons = append(reasons, fmt.Sprintf("%s:%d", k, v))
		}
		sort.Strings(reasons)
		fmt.Fprintf(&b, " %s", styleBad.Render(strings.Join(reasons, ",")))
	}
	_, err := fmt.Fprintln(w.out, b.String())
	return err
}

// WriteMetricsBatch outputs multiple metrics rows.
func (w *ColorStdoutWriter) WriteMetricsBatch(rows []telemetry.MetricsRow) error {
	for _, r := range rows {
		if err := w.WriteMetrics(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteState prints a state transition.
func (w *ColorStdoutWriter) WriteState(row telemetry.SimulationStateRow) error {
	w.once.Do(w.printOverview)
	_, err := fmt.Fprintf(w.out, "%s %s %s -> %s tick=%d vehicles=%d\n",
		styleTime.Render(fmt.Sprintf("[t=%7.2f]", row.SimTime)),
		styleState.Render("STATE"), row.From, row.To, row.Tick, row.Vehicles)
	return err
}
