package metrics

import (
	"encoding/json"
	"testing"

	"vanet-sim/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stats(s Snapshot, k config.Strategy) StrategyStats {
	for _, st := range s.PerStrategy {
		if st.Strategy == k {
			return st
		}
	}
	return StrategyStats{}
}

func TestPDRNullWhenNothingSent(t *testing.T) {
	a := New(1)
	snaps := a.Advance(1)
	require.Len(t, snaps, 1)
	assert.Nil(t, snaps[0].PDR)
	assert.Nil(t, snaps[0].AverageLatency)
	assert.Nil(t, snaps[0].OverheadRatio)

	b, err := json.Marshal(snaps[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"pdr":null`)
}

func TestIntervalSnapshot(t *testing.T) {
	a := New(1)
	a.Sent(config.Geographical)
	a.Sent(config.Geographical)
	a.Sent(config.TopologyBased)
	a.Transmitted(config.Geographical, 300)
	a.Control(config.TopologyBased, 100)
	a.Delivered(config.Geographical, 0.5)
	a.Dropped(config.TopologyBased, "ttl_expired")

	snaps := a.Advance(1)
	require.Len(t, snaps, 1)
	s := snaps[0]
	assert.Equal(t, 0.0, s.IntervalStart)
	assert.Equal(t, 1.0, s.IntervalEnd)
	assert.Equal(t, 3, s.PacketsSent)
	assert.Equal(t, 1, s.PacketsDelivered)
	assert.Equal(t, 1, s.PacketsDropped)
	require.NotNil(t, s.PDR)
	assert.InDelta(t, 1.0/3, *s.PDR, 1e-9)
	assert.InDelta(t, 0.5, *s.AverageLatency, 1e-9)
	assert.InDelta(t, 0.25, *s.OverheadRatio, 1e-9)
	assert.Equal(t, map[string]int{"ttl_expired": 1}, s.DropReasons)

	geo := stats(s, config.Geographical)
	assert.Equal(t, 2, geo.PacketsSent)
	assert.InDelta(t, 0.5, *geo.PDR, 1e-9)
	hyb := stats(s, config.Hybrid)
	assert.Nil(t, hyb.PDR)

	// Counters reset for the next interval.
	next := a.Advance(2)
	require.Len(t, next, 1)
	assert.Zero(t, next[0].PacketsSent)
}

func TestIntervalPDRCapped(t *testing.T) {
	a := New(1)
	a.Sent(config.Hybrid)
	a.Sent(config.Hybrid)
	a.Advance(1)

	a.Sent(config.Hybrid)
	a.Delivered(config.Hybrid, 1.2)
	a.Delivered(config.Hybrid, 0.8)
	snaps := a.Advance(2)
	require.Len(t, snaps, 1)
	assert.Equal(t, 1.0, *snaps[0].PDR)

	total := a.Totals(2)
	assert.InDelta(t, 2.0/3, *total.PDR, 1e-9)
}

func TestAdvanceEmitsEveryElapsedInterval(t *testing.T) {
	a := New(0.5)
	assert.Empty(t, a.Advance(0.4))
	snaps := a.Advance(1.6)
	require.Len(t, snaps, 3)
	assert.InDelta(t, 1.5, snaps[2].IntervalEnd, 1e-9)

	s, ok := a.Flush(1.6)
	require.True(t, ok)
	assert.InDelta(t, 1.5, s.IntervalStart, 1e-9)
	assert.InDelta(t, 1.6, s.IntervalEnd, 1e-9)

	_, ok = a.Flush(1.6)
	assert.False(t, ok)
}

func TestFloatDriftDoesNotSkipIntervals(t *testing.T) {
	a := New(0.1)
	now := 0.0
	emitted := 0
	for i := 0; i < 100; i++ {
		now += 0.1
		emitted += len(a.Advance(now))
	}
	assert.Equal(t, 100, emitted)
}

func TestStepDeltaAndTotals(t *testing.T) {
	a := New(10)
	a.BeginStep(0)
	a.Sent(config.TopologyBased)
	d := a.StepDelta(1)
	assert.Equal(t, 1, d.PacketsSent)

	a.BeginStep(1)
	a.Sent(config.TopologyBased)
	a.Delivered(config.TopologyBased, 2)
	d = a.StepDelta(2)
	assert.Equal(t, 1, d.PacketsSent)
	assert.Equal(t, 1, d.PacketsDelivered)

	tot := a.Totals(2)
	assert.Equal(t, 2, tot.PacketsSent)
	assert.InDelta(t, 0.5, *tot.PDR, 1e-9)
}

func TestHistoryWindow(t *testing.T) {
	a := New(1)
	for i := 1; i <= 25; i++ {
		a.Advance(float64(i))
	}
	h := a.History()
	require.Len(t, h, HistorySize)
	assert.Equal(t, 5.0, h[0].IntervalStart)
	latest, ok := a.Latest()
	require.True(t, ok)
	assert.Equal(t, 25.0, latest.IntervalEnd)

	a.Reset()
	assert.Empty(t, a.History())
	_, ok = a.Latest()
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	a := New(1)
	a.Sent(config.Geographical)
	a.Dropped(config.Geographical, "void")
	snaps := a.Advance(1)
	cp := snaps[0].Clone()
	*cp.PDR = 42
	cp.DropReasons["void"] = 9
	cp.PerStrategy[1].DropReasons["void"] = 9

	latest, _ := a.Latest()
	assert.Equal(t, 0.0, *latest.PDR)
	assert.Equal(t, 1, latest.DropReasons["void"])
	assert.Equal(t, 1, stats(latest, config.Geographical).DropReasons["void"])
}
