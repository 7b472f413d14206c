package observability

import (
	"fmt"
	"net/http"

	"vanet-sim/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// States lists the controller states exported by vanet_simulation_state.
var States = []string{"idle", "running", "paused", "stopped"}

// SimCollector mirrors emitted metrics rows and state transitions into
// Prometheus. It satisfies the simulator's metrics and state writer interfaces.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Packets       *prometheus.CounterVec
	Drops         *prometheus.CounterVec
	Bytes         *prometheus.CounterVec
	PDR           *prometheus.GaugeVec
	Latency       *prometheus.GaugeVec
	OverheadRatio *prometheus.GaugeVec
	Vehicles      prometheus.Gauge
	SimTime       prometheus.Gauge
	State         *prometheus.GaugeVec
}

// NewSimCollector registers simulator metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	packets, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vanet_packets_total",
		Help: "Packets by routing strategy and outcome (sent, delivered, dropped).",
	}, []string{"strategy", "outcome"}), "vanet_packets_total")
	if err != nil {
		return nil, err
	}
	drops, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vanet_drops_total",
		Help: "Dropped packets by routing strategy and reason.",
	}, []string{"strategy", "reason"}), "vanet_drops_total")
	if err != nil {
		return nil, err
	}
	bytes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vanet_bytes_total",
		Help: "Bytes put on the air by routing strategy and kind (data, control).",
	}, []string{"strategy", "kind"}), "vanet_bytes_total")
	if err != nil {
		return nil, err
	}
	pdr, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vanet_pdr",
		Help: "Packet delivery ratio of the last report interval.",
	}, []string{"strategy"}), "vanet_pdr")
	if err != nil {
		return nil, err
	}
	latency, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vanet_average_latency_seconds",
		Help: "Average end-to-end latency of packets delivered in the last report interval.",
	}, []string{"strategy"}), "vanet_average_latency_seconds")
	if err != nil {
		return nil, err
	}
	overhead, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vanet_overhead_ratio",
		Help: "Control bytes over all bytes in the last report interval.",
	}, []string{"strategy"}), "vanet_overhead_ratio")
	if err != nil {
		return nil, err
	}
	vehicles, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vanet_vehicles",
		Help: "Current number of vehicles on the field.",
	}), "vanet_vehicles")
	if err != nil {
		return nil, err
	}
	simTime, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vanet_sim_time_seconds",
		Help: "Simulated time at the end of the last report interval.",
	}), "vanet_sim_time_seconds")
	if err != nil {
		return nil, err
	}
	state, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vanet_simulation_state",
		Help: "1 for the controller's current state, 0 otherwise.",
	}, []string{"state"}), "vanet_simulation_state")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:      gatherer,
		Packets:       packets,
		Drops:         drops,
		Bytes:         bytes,
		PDR:           pdr,
		Latency:       latency,
		OverheadRatio: overhead,
		Vehicles:      vehicles,
		SimTime:       simTime,
		State:         state,
	}, nil
}

// WriteMetrics folds one interval row into the counters and gauges. Counters
// only take per-strategy rows so the "all" scope is not counted twice.
func (c *SimCollector) WriteMetrics(row telemetry.MetricsRow) error {
	if c == nil {
		return nil
	}
	c.Vehicles.Set(float64(row.Vehicles))
	c.SimTime.Set(row.IntervalEnd)
	setOptional(c.PDR.WithLabelValues(row.Strategy), row.PDR)
	setOptional(c.Latency.WithLabelValues(row.Strategy), row.AverageLatency)
	setOptional(c.OverheadRatio.WithLabelValues(row.Strategy), row.OverheadRatio)
	if row.Strategy == telemetry.ScopeAll {
		return nil
	}
	c.Packets.WithLabelValues(row.Strategy, "sent").Add(float64(row.PacketsSent))
	c.Packets.WithLabelValues(row.Strategy, "delivered").Add(float64(row.PacketsDelivered))
	c.Packets.WithLabelValues(row.Strategy, "dropped").Add(float64(row.PacketsDropped))
	c.Bytes.WithLabelValues(row.Strategy, "data").Add(float64(row.DataBytes))
	c.Bytes.WithLabelValues(row.Strategy, "control").Add(float64(row.ControlBytes))
	for reason, n := range row.DropReasons {
		c.Drops.WithLabelValues(row.Strategy, reason).Add(float64(n))
	}
	return nil
}

// WriteState flips the state gauge to the new state.
func (c *SimCollector) WriteState(row telemetry.SimulationStateRow) error {
	if c == nil {
		return nil
	}
	for _, s := range States {
		v := 0.0
		if s == row.To {
			v = 1
		}
		c.State.WithLabelValues(s).Set(v)
	}
	c.Vehicles.Set(float64(row.Vehicles))
	return nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func setOptional(g prometheus.Gauge, v *float64) {
	if v != nil {
		g.Set(*v)
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return g, nil
}
