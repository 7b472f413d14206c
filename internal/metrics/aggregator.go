// Packet delivery metrics over report intervals
package metrics

import (
	"maps"

	"vanet-sim/internal/config"
)

// HistorySize is the number of interval snapshots kept for History.
const HistorySize = 20

const epsilon = 1e-9

// StrategyStats is the share of a snapshot attributed to one routing strategy.
type StrategyStats struct {
	Strategy         config.Strategy `json:"strategy"`
	PacketsSent      int             `json:"packets_sent"`
	PacketsDelivered int             `json:"packets_delivered"`
	PacketsDropped   int             `json:"packets_dropped"`
	PDR              *float64        `json:"pdr"`
	AverageLatency   *float64        `json:"average_latency"`
	OverheadRatio    *float64        `json:"overhead_ratio"`
	DataBytes        int             `json:"data_bytes"`
	ControlBytes     int             `json:"control_bytes"`
	DropReasons      map[string]int  `json:"drop_reasons"`
}

// Snapshot summarizes packet outcomes between IntervalStart and IntervalEnd.
// Nil ratios mean there was nothing to divide by.
type Snapshot struct {
	IntervalStart    float64         `json:"interval_start"`
	IntervalEnd      float64         `json:"interval_end"`
	PacketsSent      int             `json:"packets_sent"`
	PacketsDelivered int             `json:"packets_delivered"`
	PacketsDropped   int             `json:"packets_dropped"`
	PDR              *float64        `json:"pdr"`
	AverageLatency   *float64        `json:"average_latency"`
	OverheadRatio    *float64        `json:"overhead_ratio"`
	DataBytes        int             `json:"data_bytes"`
	ControlBytes     int             `json:"control_bytes"`
	DropReasons      map[string]int  `json:"drop_reasons"`
	PerStrategy      []StrategyStats `json:"per_strategy"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	cp := s
	cp.PDR = clonePtr(s.PDR)
	cp.AverageLatency = clonePtr(s.AverageLatency)
	cp.OverheadRatio = clonePtr(s.OverheadRatio)
	cp.DropReasons = maps.Clone(s.DropReasons)
	if s.PerStrategy != nil {
		cp.PerStrategy = make([]StrategyStats, len(s.PerStrategy))
		for i, st := range s.PerStrategy {
			st.PDR = clonePtr(st.PDR)
			st.AverageLatency = clonePtr(st.AverageLatency)
			st.OverheadRatio = clonePtr(st.OverheadRatio)
			st.DropReasons = maps.Clone(st.DropReasons)
			cp.PerStrategy[i] = st
		}
	}
	return cp
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type counters struct {
	sent, delivered, dropped int
	latencySum               float64
	dataBytes, controlBytes  int
	reasons                  map[string]int
}

func (c *counters) add(o *counters) {
	c.sent += o.sent
	c.delivered += o.delivered
	c.dropped += o.dropped
	c.latencySum += o.latencySum
	c.dataBytes += o.dataBytes
	c.controlBytes += o.controlBytes
	for k, v := range o.reasons {
		if c.reasons == nil {
			c.reasons = make(map[string]int)
		}
		c.reasons[k] += v
	}
}

type scope map[config.Strategy]*counters

func (s scope) get(k config.Strategy) *counters {
	c, ok := s[k]
	if !ok {
		c = &counters{}
		s[k] = c
	}
	return c
}

// Aggregator counts packet outcomes in three scopes: the current report
// interval, the current step and the whole run.
type Aggregator struct {
	interval      float64
	intervalStart float64
	stepStart     float64
	cur           scope
	step          scope
	total         scope
	latest        *Snapshot
	history       []Snapshot
}

// New returns an aggregator emitting one snapshot per interval seconds.
func New(interval float64) *Aggregator {
	a := &Aggregator{interval: interval}
	a.Reset()
	return a
}

// Reset clears every counter and the history.
func (a *Aggregator) Reset() {
	a.intervalStart = 0
	a.stepStart = 0
	a.cur = scope{}
	a.step = scope{}
	a.total = scope{}
	a.latest = nil
	a.history = nil
}

// SetInterval changes the report interval for subsequent snapshots.
func (a *Aggregator) SetInterval(interval float64) { a.interval = interval }

func (a *Aggregator) each(s config.Strategy, fn func(*counters)) {
	fn(a.cur.get(s))
	fn(a.step.get(s))
	fn(a.total.get(s))
}

// Sent records a newly created packet.
func (a *Aggregator) Sent(s config.Strategy) {
	a.each(s, func(c *counters) { c.sent++ })
}

// Delivered records a delivery after latency simulated seconds.
func (a *Aggregator) Delivered(s config.Strategy, latency float64) {
	a.each(s, func(c *counters) {
		c.delivered++
		c.latencySum += latency
	})
}

// Dropped records a drop for reason.
func (a *Aggregator) Dropped(s config.Strategy, reason string) {
	a.each(s, func(c *counters) {
		c.dropped++
		if c.reasons == nil {
			c.reasons = make(map[string]int)
		}
		c.reasons[reason]++
	})
}

// Transmitted records payload bytes put on air for one hop.
func (a *Aggregator) Transmitted(s config.Strategy, bytes int) {
	a.each(s, func(c *counters) { c.dataBytes += bytes })
}

// Control records routing control traffic.
func (a *Aggregator) Control(s config.Strategy, bytes int) {
	if bytes == 0 {
		return
	}
	a.each(s, func(c *counters) { c.controlBytes += bytes })
}

// Advance closes every report interval that ended at or before now and
// returns their snapshots in order.
func (a *Aggregator) Advance(now float64) []Snapshot {
	if a.interval <= 0 {
		return nil
	}
	var out []Snapshot
	for now+epsilon >= a.intervalStart+a.interval {
		end := a.intervalStart + a.interval
		out = append(out, a.emit(end))
	}
	return out
}

// Flush closes the current partial interval. It returns false when the
// interval is empty in both time and activity.
func (a *Aggregator) Flush(now float64) (Snapshot, bool) {
	if now <= a.intervalStart+epsilon && !active(a.cur) {
		return Snapshot{}, false
	}
	return a.emit(max(now, a.intervalStart)), true
}

func active(s scope) bool {
	for _, c := range s {
		if c.sent+c.delivered+c.dropped+c.dataBytes+c.controlBytes > 0 {
			return true
		}
	}
	return false
}

func (a *Aggregator) emit(end float64) Snapshot {
	snap := build(a.cur, a.intervalStart, end, true)
	a.cur = scope{}
	a.intervalStart = end
	a.latest = &snap
	a.history = append(a.history, snap)
	if len(a.history) > HistorySize {
		a.history = a.history[len(a.history)-HistorySize:]
	}
	return snap.Clone()
}

// BeginStep starts a new step scope at now.
func (a *Aggregator) BeginStep(now float64) {
	a.step = scope{}
	a.stepStart = now
}

// StepDelta returns what happened since the last BeginStep.
func (a *Aggregator) StepDelta(now float64) Snapshot {
	return build(a.step, a.stepStart, now, true)
}

// Totals returns cumulative counters for the run.
func (a *Aggregator) Totals(now float64) Snapshot {
	return build(a.total, 0, now, false)
}

// Latest returns the most recently emitted interval snapshot.
func (a *Aggregator) Latest() (Snapshot, bool) {
	if a.latest == nil {
		return Snapshot{}, false
	}
	return a.latest.Clone(), true
}

// History returns up to HistorySize most recent interval snapshots, oldest first.
func (a *Aggregator) History() []Snapshot {
	out := make([]Snapshot, len(a.history))
	for i, s := range a.history {
		out[i] = s.Clone()
	}
	return out
}

func build(s scope, start, end float64, capPDR bool) Snapshot {
	var all counters
	snap := Snapshot{IntervalStart: start, IntervalEnd: end}
	for _, k := range config.Strategies {
		c := s[k]
		if c == nil {
			c = &counters{}
		}
		all.add(c)
		snap.PerStrategy = append(snap.PerStrategy, StrategyStats{
			Strategy:         k,
			PacketsSent:      c.sent,
			PacketsDelivered: c.delivered,
			PacketsDropped:   c.dropped,
			PDR:              pdr(c, capPDR),
			AverageLatency:   avgLatency(c),
			OverheadRatio:    overhead(c),
			DataBytes:        c.dataBytes,
			ControlBytes:     c.controlBytes,
			DropReasons:      reasons(c),
		})
	}
	snap.PacketsSent = all.sent
	snap.PacketsDelivered = all.delivered
	snap.PacketsDropped = all.dropped
	snap.PDR = pdr(&all, capPDR)
	snap.AverageLatency = avgLatency(&all)
	snap.OverheadRatio = overhead(&all)
	snap.DataBytes = all.dataBytes
	snap.ControlBytes = all.controlBytes
	snap.DropReasons = reasons(&all)
	return snap
}

func reasons(c *counters) map[string]int {
	out := make(map[string]int, len(c.reasons))
	maps.Copy(out, c.reasons)
	return out
}

// pdr is delivered/sent, nil when nothing was sent. Interval ratios are capped
// at 1 because deliveries can land in a later interval than their send.
func pdr(c *counters, capped bool) *float64 {
	if c.sent == 0 {
		return nil
	}
	v := float64(c.delivered) / float64(c.sent)
	if capped && v > 1 {
		v = 1
	}
	return &v
}

func avgLatency(c *counters) *float64 {
	if c.delivered == 0 {
		return nil
	}
	v := c.latencySum / float64(c.delivered)
	return &v
}

// overhead is the control share of all bytes sent.
func overhead(c *counters) *float64 {
	total := c.dataBytes + c.controlBytes
	if total == 0 {
		return nil
	}
	v := float64(c.controlBytes) / float64(total)
	return &v
}
