// Simulator orchestrating vehicles, packets and metrics ticks
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"vanet-sim/internal/config"
	"vanet-sim/internal/contact"
	"vanet-sim/internal/event"
	"vanet-sim/internal/metrics"
	"vanet-sim/internal/mobility"
	"vanet-sim/internal/packet"
	"vanet-sim/internal/routing"
	"vanet-sim/internal/telemetry"

	"github.com/google/uuid"
)

// ErrInvalidState is returned when an operation is not allowed in the current state.
var ErrInvalidState = errors.New("invalid state")

// State is the lifecycle state of a Simulator.
type State int

const (
	Idle State = iota
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// MetricsWriter receives one row per emitted snapshot and strategy scope.
type MetricsWriter interface {
	WriteMetrics(telemetry.MetricsRow) error
}

// Optional: metrics writers may support batch mode
type batchMetricsWriter interface {
	WriteMetricsBatch([]telemetry.MetricsRow) error
}

// VehicleWriter receives per-tick vehicle rows.
type VehicleWriter interface {
	WriteVehicle(telemetry.VehicleRow) error
}

// Optional: vehicle writers may support batch mode
type batchVehicleWriter interface {
	WriteVehicles([]telemetry.VehicleRow) error
}

// VehicleView is a vehicle plus its current neighbor count.
type VehicleView struct {
	mobility.Vehicle
	Neighbors int `json:"neighbors"`
}

// Snapshot is a read-only copy of the simulation between ticks.
type Snapshot struct {
	RunID    string                  `json:"run_id"`
	State    State                   `json:"state"`
	Time     float64                 `json:"time"`
	Tick     int                     `json:"tick"`
	Config   config.SimulationConfig `json:"config"`
	Vehicles []VehicleView           `json:"vehicles"`
	Edges    []contact.Edge          `json:"edges"`
	Latest   *metrics.Snapshot       `json:"latest"`
	Totals   metrics.Snapshot        `json:"totals"`
	Packets  []packet.Packet         `json:"packets"`
}

// StepResult describes one processed tick.
type StepResult struct {
	Time     float64            `json:"time"`
	Tick     int                `json:"tick"`
	Delta    metrics.Snapshot   `json:"delta"`
	Emitted  []metrics.Snapshot `json:"emitted"`
	Vehicles int                `json:"vehicles"`
}

// Simulator owns the world and advances it one tick at a time. All exported
// methods are safe for concurrent use; each holds the lock for its duration.
type Simulator struct {
	mu            sync.Mutex
	runID         string
	cfg           config.SimulationConfig
	state         State
	started       time.Time
	tickInterval  time.Duration
	writer        MetricsWriter
	vehicleWriter VehicleWriter
	stateWriter   StateWriter
	log           *slog.Logger
	now           func() time.Time

	rand         *rand.Rand
	mobility     *mobility.Model
	graph        *contact.Graph
	sched        *event.Scheduler
	agg          *metrics.Aggregator
	strategies   map[config.Strategy]routing.Strategy
	packets      map[int64]*packet.Packet
	nextPacketID int64
	tick         int
	lastTickTime float64
	txLoad       map[int]int
	observers    []func(event.Event)
	// scripted is set while RunScenario drives the steps; Run skips ticks.
	scripted bool
}

// NewSimulator validates cfg and builds the initial world from its seed.
// An empty runID gets a random one. Either writer may be nil.
func NewSimulator(runID string, cfg config.SimulationConfig, writer MetricsWriter, vWriter VehicleWriter) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if runID == "" {
		runID = uuid.New().String()
	}
	s := &Simulator{
		runID:         runID,
		cfg:           cfg,
		state:         Idle,
		tickInterval:  time.Duration(cfg.TickSeconds * float64(time.Second)),
		writer:        writer,
		vehicleWriter: vWriter,
		log:           slog.Default(),
		now:           time.Now,
	}
	if sw, ok := writer.(StateWriter); ok {
		s.stateWriter = sw
	}
	if err := s.buildWorld(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetLogger replaces the logger used for writer failures.
func (s *Simulator) SetLogger(l *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l
}

// SetTickInterval sets the wall-clock period used by Run.
func (s *Simulator) SetTickInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickInterval = d
}

// SetStateWriter overrides where state transitions are reported.
func (s *Simulator) SetStateWriter(w StateWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateWriter = w
}

// OnEvent registers fn to be called for every dispatched event. fn runs with
// the simulator lock held and must not call back into the Simulator.
func (s *Simulator) OnEvent(fn func(event.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// RunID returns the identifier tagged on every output row.
func (s *Simulator) RunID() string { return s.runID }

// State returns the current lifecycle state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns a copy of the active configuration.
func (s *Simulator) Config() config.SimulationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// History returns the most recent interval snapshots, oldest first.
func (s *Simulator) History() []metrics.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.History()
}

func (s *Simulator) buildWorld() error {
	s.rand = rand.New(rand.NewSource(s.cfg.Seed))
	m, err := mobility.NewModel(mobility.ParamsFromConfig(s.cfg), s.rand)
	if err != nil {
		return err
	}
	s.mobility = m
	s.sched = event.NewScheduler(event.DispatcherFunc(s.dispatch))
	s.agg = metrics.New(s.cfg.ReportInterval)
	s.strategies = make(map[config.Strategy]routing.Strategy)
	s.packets = make(map[int64]*packet.Packet)
	s.nextPacketID = 1
	s.tick = 0
	s.lastTickTime = 0
	s.txLoad = make(map[int]int)
	s.started = s.now()
	s.rebuildGraph()
	s.refreshStrategies()
	return nil
}

func (s *Simulator) rebuildGraph() {
	s.graph = contact.Build(s.mobility.Field(), s.mobility.Vehicles(), s.cfg.RadioRange)
}

func (s *Simulator) strategy(k config.Strategy) routing.Strategy {
	st, ok := s.strategies[k]
	if !ok {
		// Kinds are validated on every path that creates packets.
		st, _ = routing.New(k, s.cfg.Routing)
		s.strategies[k] = st
	}
	return st
}

// refreshStrategies lets every strategy in use update its tables and
// accounts the control traffic it cost.
func (s *Simulator) refreshStrategies() {
	inUse := map[config.Strategy]bool{s.cfg.Strategy: true}
	for _, p := range s.packets {
		inUse[p.Strategy] = true
	}
	for _, k := range config.Strategies {
		if !inUse[k] {
			continue
		}
		s.agg.Control(k, s.strategy(k).Refresh(s.graph, s.tick))
	}
}

// Configure applies cfg. In Idle the world is rebuilt from cfg's seed; in
// Paused the changes are applied to the running world.
func (s *Simulator) Configure(cfg config.SimulationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle && s.state != Paused {
		return fmt.Errorf("%w: configure not allowed while %s", ErrInvalidState, s.state)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.state == Idle {
		prev := s.cfg
		s.cfg = cfg
		if err := s.buildWorld(); err != nil {
			s.cfg = prev
			return err
		}
		s.log.Info("simulation configured", "strategy", cfg.Strategy, "vehicles", s.mobility.Count())
		return nil
	}
	return s.applyLive(cfg)
}

// applyLive changes a paused world in place. cfg is already validated.
// The seed of a running world cannot change.
func (s *Simulator) applyLive(cfg config.SimulationConfig) error {
	cfg.Seed = s.cfg.Seed
	if err := s.mobility.SetField(mobility.Field{Width: cfg.Field.Width, Height: cfg.Field.Height}); err != nil {
		return err
	}
	if err := s.mobility.SetRadioRange(cfg.RadioRange); err != nil {
		return err
	}
	if err := s.mobility.SetSpeedBounds(cfg.SpeedMin, cfg.SpeedMax); err != nil {
		return err
	}
	removed, err := s.mobility.SetPopulation(cfg.MaxVehicles, cfg.Density)
	if err != nil {
		return err
	}
	prev := s.cfg
	s.cfg = cfg

	if prev.Routing != cfg.Routing {
		s.strategies = make(map[config.Strategy]routing.Strategy)
	}
	s.agg.SetInterval(cfg.ReportInterval)
	s.rebuildGraph()
	s.dropForRemoved(removed)
	s.log.Info("simulation reconfigured", "strategy", cfg.Strategy, "vehicles", s.mobility.Count(), "removed", len(removed))
	return nil
}

func (s *Simulator) dropForRemoved(removed []int) {
	if len(removed) == 0 {
		return
	}
	gone := make(map[int]bool, len(removed))
	for _, id := range removed {
		gone[id] = true
	}
	for _, id := range s.packetIDs() {
		p := s.packets[id]
		switch {
		case gone[p.Holder], p.InTransit && gone[p.NextHop]:
			s.drop(p, routing.ReasonHolderLost)
		case gone[p.Dst]:
			s.drop(p, routing.ReasonDestinationGone)
		}
	}
}

// Start moves Idle or Paused to Running.
func (s *Simulator) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle && s.state != Paused {
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, s.state)
	}
	s.transition(Running)
	return nil
}

// Pause moves Running to Paused.
func (s *Simulator) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidState, s.state)
	}
	s.transition(Paused)
	return nil
}

// Stop ends the run and flushes the trailing partial interval to the writer.
// Stopping a stopped simulator does nothing.
func (s *Simulator) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Stopped {
		return nil
	}
	if snap, ok := s.agg.Flush(s.sched.Now()); ok {
		s.writeMetrics([]metrics.Snapshot{snap})
	}
	s.transition(Stopped)
	return nil
}

// Reset returns a stopped simulator to Idle with a fresh world built from
// the current configuration.
func (s *Simulator) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Stopped {
		return fmt.Errorf("%w: reset only allowed once stopped, state is %s", ErrInvalidState, s.state)
	}
	if err := s.buildWorld(); err != nil {
		return err
	}
	s.transition(Idle)
	return nil
}

func (s *Simulator) transition(to State) {
	from := s.state
	s.state = to
	s.log.Info("simulation state changed", "from", from, "to", to, "tick", s.tick)
	if s.stateWriter == nil {
		return
	}
	row := telemetry.SimulationStateRow{
		RunID:     s.runID,
		From:      from.String(),
		To:        to.String(),
		Tick:      s.tick,
		SimTime:   s.sched.Now(),
		Vehicles:  s.mobility.Count(),
		Strategy:  string(s.cfg.Strategy),
		Timestamp: s.now().UTC(),
	}
	if err := s.stateWriter.WriteState(row); err != nil {
		s.log.Error("state write failed", "err", err)
	}
}

// Inject creates a packet from src to dst at the current simulated time and
// routes it immediately. A size of 0 uses the configured payload size.
func (s *Simulator) Inject(src, dst, size int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Stopped {
		return 0, fmt.Errorf("%w: cannot inject while %s", ErrInvalidState, s.state)
	}
	if size == 0 {
		size = s.cfg.PayloadBytes
	}
	switch {
	case size < 0:
		return 0, fmt.Errorf("%w: packet size must be > 0, got %d", config.ErrInvalidConfig, size)
	case src == dst:
		return 0, fmt.Errorf("%w: source and destination are both %d", config.ErrInvalidConfig, src)
	case !s.graph.Has(src):
		return 0, fmt.Errorf("%w: unknown source vehicle %d", config.ErrInvalidConfig, src)
	case !s.graph.Has(dst):
		return 0, fmt.Errorf("%w: unknown destination vehicle %d", config.ErrInvalidConfig, dst)
	}
	p := s.newPacket(src, dst, size)
	return p.ID, nil
}

// Snapshot returns a deep copy of the current state. Two calls without a step
// in between return equal values.
func (s *Simulator) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.sched.Now()
	vs := s.mobility.Vehicles()
	views := make([]VehicleView, len(vs))
	for i, v := range vs {
		views[i] = VehicleView{Vehicle: v, Neighbors: s.graph.Degree(v.ID)}
	}
	snap := Snapshot{
		RunID:    s.runID,
		State:    s.state,
		Time:     now,
		Tick:     s.tick,
		Config:   s.cfg,
		Vehicles: views,
		Edges:    s.graph.Edges(),
		Totals:   s.agg.Totals(now),
		Packets:  make([]packet.Packet, 0, len(s.packets)),
	}
	if latest, ok := s.agg.Latest(); ok {
		snap.Latest = &latest
	}
	for _, id := range s.packetIDs() {
		snap.Packets = append(snap.Packets, s.packets[id].Clone())
	}
	return snap
}

func (s *Simulator) packetIDs() []int64 {
	ids := make([]int64, 0, len(s.packets))
	for id := range s.packets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Simulator) newPacket(src, dst, size int) *packet.Packet {
	now := s.sched.Now()
	dstPos, _ := s.graph.Position(dst)
	p := packet.New(s.nextPacketID, src, dst, size, now, s.cfg.TTLHops, s.cfg.TTLSeconds, s.cfg.Strategy, dstPos)
	s.nextPacketID++
	s.packets[p.ID] = p
	s.agg.Sent(p.Strategy)
	s.route(p)
	return p
}

// route asks the packet's strategy what to do next and carries it out.
func (s *Simulator) route(p *packet.Packet) {
	now := s.sched.Now()
	d := s.strategy(p.Strategy).NextHop(p, routing.View{Graph: s.graph, Now: now, Tick: s.tick})
	switch d.Action {
	case routing.Forward:
		s.transmit(p, d.NextHop)
	case routing.Hold:
		if p.Waiting {
			return
		}
		at := p.Hold(now, s.tick, s.cfg.MaxWaitSeconds)
		s.sched.Schedule(at, event.PacketTimeout, p.ID)
	case routing.Drop:
		s.drop(p, d.Reason)
	}
}

// transmit sends p over one link. Every transmission from a vehicle within a
// tick raises its load, which stretches the delay; weak links under
// congestion may lose the packet.
func (s *Simulator) transmit(p *packet.Packet, next int) {
	link, _ := s.graph.Link(p.Holder, next)
	load := s.txLoad[p.Holder]
	s.txLoad[p.Holder]++
	s.agg.Transmitted(p.Strategy, p.Size)

	if c := s.cfg.Congestion; c > 0 && s.rand.Float64() < c*(1-link.Quality) {
		s.drop(p, routing.ReasonContention)
		return
	}
	p.Waiting = false
	p.InTransit = true
	p.NextHop = next
	delay := s.cfg.TransmissionDelay * (1 + s.cfg.Congestion*float64(load))
	s.sched.Schedule(s.sched.Now()+delay, event.PacketForward, p.ID)
}

func (s *Simulator) deliver(p *packet.Packet) {
	s.agg.Delivered(p.Strategy, s.sched.Now()-p.Created)
	delete(s.packets, p.ID)
}

func (s *Simulator) drop(p *packet.Packet, reason string) {
	s.agg.Dropped(p.Strategy, reason)
	delete(s.packets, p.ID)
}

const timeEpsilon = 1e-9

func (s *Simulator) onTimeout(p *packet.Packet) {
	now := s.sched.Now()
	if !p.Waiting || p.InTransit || now+timeEpsilon < p.TimeoutAt {
		return
	}
	reason := routing.ReasonMaxWait
	if now+timeEpsilon >= p.Deadline() {
		reason = routing.ReasonTTLExpired
	}
	s.drop(p, reason)
}

func (s *Simulator) onArrival(p *packet.Packet) {
	if !p.InTransit {
		return
	}
	if !s.graph.Has(p.NextHop) {
		s.drop(p, routing.ReasonHolderLost)
		return
	}
	p.Arrive()
	if p.Holder == p.Dst {
		s.deliver(p)
		return
	}
	s.route(p)
}

func validDt(dt float64) bool {
	return dt > 0 && !math.IsNaN(dt) && !math.IsInf(dt, 0)
}
