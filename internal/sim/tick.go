package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"vanet-sim/internal/config"
	"vanet-sim/internal/event"
	"vanet-sim/internal/logging"
	"vanet-sim/internal/metrics"
	"vanet-sim/internal/telemetry"
)

// Run steps the simulation by tick_seconds on every wall-clock tick while it
// is Running. Other states skip the tick, so a stopped run that is reset and
// started again resumes ticking. Run stops the simulation and returns when ctx
// is done.
func (s *Simulator) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	s.mu.Lock()
	interval := s.tickInterval
	s.mu.Unlock()
	if interval <= 0 {
		interval = time.Second
	}
	log.Info("starting simulator", "run_id", s.runID, "tick_interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tickOnce(ctx)
		case <-ctx.Done():
			if err := s.Stop(); err != nil {
				log.Error("stop failed", "err", err)
			}
			log.Info("stopping simulator")
			return
		}
	}
}

// tickOnce advances one tick if Running.
func (s *Simulator) tickOnce(ctx context.Context) {
	log := logging.FromContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running || s.scripted {
		return
	}
	res, err := s.step(s.cfg.TickSeconds)
	if err != nil {
		log.Error("step failed", "err", err)
		return
	}
	log.Debug("tick", "tick", res.Tick, "time", res.Time, "vehicles", res.Vehicles, "packets", len(s.packets))
}

// Step advances the simulation by exactly one tick of dt simulated seconds.
// It is allowed while Running or Paused.
func (s *Simulator) Step(dt float64) (StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step(dt)
}

func (s *Simulator) step(dt float64) (StepResult, error) {
	if s.state != Running && s.state != Paused {
		return StepResult{}, fmt.Errorf("%w: cannot step while %s", ErrInvalidState, s.state)
	}
	if !validDt(dt) {
		return StepResult{}, fmt.Errorf("%w: step dt must be > 0, got %v", config.ErrInvalidConfig, dt)
	}
	start := s.sched.Now()
	target := start + dt
	s.agg.BeginStep(start)
	s.sched.Schedule(target, event.VehicleTick, int64(s.tick+1))
	s.sched.RunUntil(target)

	emitted := s.agg.Advance(target)
	s.writeMetrics(emitted)
	s.writeVehicles()

	return StepResult{
		Time:     target,
		Tick:     s.tick,
		Delta:    s.agg.StepDelta(target),
		Emitted:  emitted,
		Vehicles: s.mobility.Count(),
	}, nil
}

func (s *Simulator) dispatch(e event.Event) {
	for _, fn := range s.observers {
		fn(e)
	}
	switch e.Kind {
	case event.VehicleTick:
		s.onTick(e)
	case event.PacketForward:
		if p, ok := s.packets[e.ID]; ok {
			s.onArrival(p)
		}
	case event.PacketTimeout:
		if p, ok := s.packets[e.ID]; ok {
			s.onTimeout(p)
		}
	}
}

// onTick runs the per-tick pipeline: move, rebuild contacts, refresh
// routing tables, retry held packets, generate traffic.
func (s *Simulator) onTick(e event.Event) {
	s.tick = int(e.ID)
	s.mobility.Advance(e.Time - s.lastTickTime)
	s.lastTickTime = e.Time
	s.rebuildGraph()
	s.refreshStrategies()

	for _, id := range s.packetIDs() {
		p, ok := s.packets[id]
		if !ok || !p.Waiting || p.InTransit {
			continue
		}
		s.route(p)
	}

	s.generateTraffic()
	clear(s.txLoad)
}

// generateTraffic creates floor(rate) packets plus one more with probability
// equal to the fractional part, between random distinct vehicles.
func (s *Simulator) generateTraffic() {
	rate := s.cfg.TrafficRatePerTick
	if rate <= 0 {
		return
	}
	whole, frac := math.Modf(rate)
	n := int(whole)
	if frac > 0 && s.rand.Float64() < frac {
		n++
	}
	ids := s.graph.Nodes()
	if len(ids) < 2 {
		return
	}
	for i := 0; i < n; i++ {
		si := s.rand.Intn(len(ids))
		di := s.rand.Intn(len(ids) - 1)
		if di >= si {
			di++
		}
		s.newPacket(ids[si], ids[di], s.cfg.PayloadBytes)
	}
}

func (s *Simulator) writeMetrics(snaps []metrics.Snapshot) {
	if s.writer == nil || len(snaps) == 0 {
		return
	}
	count := s.mobility.Count()
	var rows []telemetry.MetricsRow
	for _, snap := range snaps {
		rows = append(rows, telemetry.MetricsRows(s.runID, snap, count, s.started)...)
	}
	// Batch support if writer implements WriteMetricsBatch
	if bw, ok := s.writer.(batchMetricsWriter); ok {
		if err := bw.WriteMetricsBatch(rows); err != nil {
			s.log.Error("metrics batch write failed", "err", err)
		}
		return
	}
	for _, row := range rows {
		if err := s.writer.WriteMetrics(row); err != nil {
			s.log.Error("metrics write failed", "strategy", row.Strategy, "err", err)
		}
	}
}

func (s *Simulator) writeVehicles() {
	if s.vehicleWriter == nil {
		return
	}
	now := s.sched.Now()
	ts := telemetry.SimTimestamp(s.started, now)
	vs := s.mobility.Vehicles()
	rows := make([]telemetry.VehicleRow, len(vs))
	for i, v := range vs {
		rows[i] = telemetry.VehicleRow{
			RunID:     s.runID,
			VehicleID: v.ID,
			Tick:      s.tick,
			SimTime:   now,
			X:         v.Pos.X,
			Y:         v.Pos.Y,
			Speed:     v.Speed,
			Heading:   v.Heading,
			Neighbors: s.graph.Degree(v.ID),
			Timestamp: ts,
		}
	}
	if bw, ok := s.vehicleWriter.(batchVehicleWriter); ok {
		if err := bw.WriteVehicles(rows); err != nil {
			s.log.Error("vehicle batch write failed", "err", err)
		}
		return
	}
	for _, row := range rows {
		if err := s.vehicleWriter.WriteVehicle(row); err != nil {
			s.log.Error("vehicle write failed", "vehicle_id", row.VehicleID, "err", err)
		}
	}
}
