package packet

import (
	"vanet-sim/internal/config"
	"vanet-sim/internal/mobility"
)

// Packet is a unit of traffic carried hop by hop from Src to Dst.
type Packet struct {
	ID         int64           `json:"id"`
	Src        int             `json:"src"`
	Dst        int             `json:"dst"`
	Size       int             `json:"size"`
	Created    float64         `json:"created"`
	Hops       int             `json:"hops"`
	TTLHops    int             `json:"ttl_hops"`
	TTLSeconds float64         `json:"ttl_seconds"`
	Strategy   config.Strategy `json:"strategy"`
	Holder     int             `json:"holder"`
	Path       []int           `json:"path"`
	// DstPos is where the destination was when the packet was created.
	DstPos mobility.Point `json:"dst_pos"`

	Waiting   bool    `json:"waiting"`
	WaitStart float64 `json:"wait_start,omitempty"`
	WaitTick  int     `json:"wait_tick,omitempty"`
	TimeoutAt float64 `json:"timeout_at,omitempty"`

	// InTransit is set between a forward decision and arrival at NextHop.
	InTransit bool `json:"in_transit"`
	NextHop   int  `json:"next_hop,omitempty"`
}

// New returns a packet held by its source.
func New(id int64, src, dst, size int, now float64, ttlHops int, ttlSeconds float64, strategy config.Strategy, dstPos mobility.Point) *Packet {
	return &Packet{
		ID:         id,
		Src:        src,
		Dst:        dst,
		Size:       size,
		Created:    now,
		TTLHops:    ttlHops,
		TTLSeconds: ttlSeconds,
		Strategy:   strategy,
		Holder:     src,
		Path:       []int{src},
		DstPos:     dstPos,
	}
}

// Visited reports whether id is already on the packet's path.
func (p *Packet) Visited(id int) bool {
	for _, v := range p.Path {
		if v == id {
			return true
		}
	}
	return false
}

// Expired reports whether the hop or time budget is used up at now.
func (p *Packet) Expired(now float64) bool {
	return p.Hops >= p.TTLHops || now-p.Created >= p.TTLSeconds
}

// Deadline is the simulated time at which the time budget runs out.
func (p *Packet) Deadline() float64 { return p.Created + p.TTLSeconds }

// Hold marks the packet as waiting and returns its timeout deadline.
// A packet already waiting keeps its original wait start.
func (p *Packet) Hold(now float64, tick int, maxWait float64) float64 {
	if !p.Waiting {
		p.Waiting = true
		p.WaitStart = now
		p.WaitTick = tick
		p.TimeoutAt = min(p.Deadline(), now+maxWait)
	}
	return p.TimeoutAt
}

// Arrive moves the packet to its next hop.
func (p *Packet) Arrive() {
	p.Holder = p.NextHop
	p.Hops++
	p.Path = append(p.Path, p.NextHop)
	p.InTransit = false
	p.NextHop = 0
}

// Clone returns a deep copy.
func (p *Packet) Clone() Packet {
	cp := *p
	cp.Path = append([]int(nil), p.Path...)
	return cp
}
