package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ got []Event }

func (r *recorder) Dispatch(e Event) { r.got = append(r.got, e) }

func TestOrderByTimeThenSequence(t *testing.T) {
	r := &recorder{}
	s := NewScheduler(r)
	s.Schedule(2, PacketForward, 1)
	s.Schedule(1, PacketTimeout, 2)
	s.Schedule(2, PacketTimeout, 3)
	s.Schedule(1, VehicleTick, 4)

	for s.Step() {
	}
	var ids []int64
	for _, e := range r.got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{2, 4, 1, 3}, ids)
	assert.Equal(t, 2.0, s.Now())
}

func TestScheduleClampsToNow(t *testing.T) {
	s := NewScheduler(nil)
	s.RunUntil(5)
	e := s.Schedule(3, PacketTimeout, 1)
	assert.Equal(t, 5.0, e.Time)
}

func TestRunUntilDrainsFollowUps(t *testing.T) {
	var s *Scheduler
	var seen []float64
	s = NewScheduler(DispatcherFunc(func(e Event) {
		seen = append(seen, e.Time)
		if e.ID < 3 {
			s.Schedule(e.Time+0.4, PacketForward, e.ID+1)
		}
	}))
	s.Schedule(0.5, PacketForward, 0)

	n := s.RunUntil(1.5)
	assert.Equal(t, 3, n)
	assert.InDeltaSlice(t, []float64{0.5, 0.9, 1.3}, seen, 1e-9)
	assert.Equal(t, 1.5, s.Now())
	require.Equal(t, 1, s.Len())

	next, ok := s.Peek()
	require.True(t, ok)
	assert.InDelta(t, 1.7, next.Time, 1e-9)
}

func TestTimeIsMonotonic(t *testing.T) {
	var s *Scheduler
	last := -1.0
	s = NewScheduler(DispatcherFunc(func(e Event) {
		require.GreaterOrEqual(t, e.Time, last)
		last = e.Time
		if e.ID%2 == 0 {
			// Attempt to schedule in the past.
			s.Schedule(e.Time-1, PacketTimeout, e.ID+1)
		}
	}))
	for i := int64(0); i < 10; i += 2 {
		s.Schedule(float64(i), PacketForward, i)
	}
	s.RunUntil(100)
	assert.Zero(t, s.Len())
}

func TestEmptyAndReset(t *testing.T) {
	s := NewScheduler(nil)
	assert.False(t, s.Step())
	_, ok := s.Peek()
	assert.False(t, ok)

	s.Schedule(1, VehicleTick, 1)
	s.RunUntil(0.5)
	assert.Equal(t, 1, s.Len())
	s.Reset()
	assert.Zero(t, s.Len())
	assert.Zero(t, s.Now())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "vehicle_tick", VehicleTick.String())
	assert.Equal(t, "packet_forward", PacketForward.String())
	assert.Equal(t, "packet_timeout", PacketTimeout.String())
}
