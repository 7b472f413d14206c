// Discrete-event queue ordered by simulated time
package event

import (
	"container/heap"
	"fmt"
)

// Kind tags what an event is about.
type Kind int

const (
	VehicleTick Kind = iota
	PacketForward
	PacketTimeout
)

func (k Kind) String() string {
	switch k {
	case VehicleTick:
		return "vehicle_tick"
	case PacketForward:
		return "packet_forward"
	case PacketTimeout:
		return "packet_timeout"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is a scheduled occurrence. ID is a tick number for VehicleTick and a
// packet id otherwise.
type Event struct {
	Time float64 `json:"time"`
	Seq  uint64  `json:"seq"`
	Kind Kind    `json:"kind"`
	ID   int64   `json:"id"`
}

// Dispatcher handles events popped from the queue.
type Dispatcher interface {
	Dispatch(Event)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(Event)

func (f DispatcherFunc) Dispatch(e Event) { f(e) }

type queue []Event

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].Time != q[j].Time {
		return q[i].Time < q[j].Time
	}
	return q[i].Seq < q[j].Seq
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any) { *q = append(*q, x.(Event)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// Scheduler owns the simulated clock. Equal-time events run in insertion order.
type Scheduler struct {
	now  float64
	seq  uint64
	q    queue
	disp Dispatcher
}

// NewScheduler returns a scheduler at time zero.
func NewScheduler(d Dispatcher) *Scheduler {
	return &Scheduler{disp: d}
}

// Now returns the current simulated time.
func (s *Scheduler) Now() float64 { return s.now }

// Len returns the number of pending events.
func (s *Scheduler) Len() int { return len(s.q) }

// Schedule enqueues an event. Times in the past are clamped to now.
func (s *Scheduler) Schedule(at float64, kind Kind, id int64) Event {
	if at < s.now {
		at = s.now
	}
	e := Event{Time: at, Seq: s.seq, Kind: kind, ID: id}
	s.seq++
	heap.Push(&s.q, e)
	return e
}

// Peek returns the next event without removing it.
func (s *Scheduler) Peek() (Event, bool) {
	if len(s.q) == 0 {
		return Event{}, false
	}
	return s.q[0], true
}

// Step dispatches the earliest event. It returns false when the queue is empty.
func (s *Scheduler) Step() bool {
	if len(s.q) == 0 {
		return false
	}
	e := heap.Pop(&s.q).(Event)
	s.now = e.Time
	if s.disp != nil {
		s.disp.Dispatch(e)
	}
	return true
}

// RunUntil dispatches every event with Time <= t, including ones scheduled
// while draining, then advances the clock to t. It returns the number of
// events dispatched.
func (s *Scheduler) RunUntil(t float64) int {
	n := 0
	for len(s.q) > 0 && s.q[0].Time <= t {
		s.Step()
		n++
	}
	if t > s.now {
		s.now = t
	}
	return n
}

// Reset drops every pending event and rewinds the clock.
func (s *Scheduler) Reset() {
	s.q = nil
	s.now = 0
	s.seq = 0
}
