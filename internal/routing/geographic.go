package routing

import (
	"vanet-sim/internal/config"
	"vanet-sim/internal/contact"
	"vanet-sim/internal/packet"
)

// GeographicRouter forwards greedily toward the destination's last known position.
type GeographicRouter struct {
	params config.Routing
}

// NewGeographic returns a greedy geographic router.
func NewGeographic(params config.Routing) *GeographicRouter {
	return &GeographicRouter{params: params}
}

func (r *GeographicRouter) Kind() config.Strategy { return config.Geographical }

// Refresh is free: greedy forwarding keeps no tables.
func (r *GeographicRouter) Refresh(*contact.Graph, int) int { return 0 }

// NextHop hands the packet straight to the destination when it is a neighbor,
// otherwise to the neighbor strictly closest to the destination position.
// At a void the packet is held, then dropped after VoidTicks ticks.
func (r *GeographicRouter) NextHop(p *packet.Packet, v View) Decision {
	if d, done := precheck(p, v); done {
		return d
	}
	if _, ok := v.Graph.Link(p.Holder, p.Dst); ok {
		return forward(p.Dst)
	}

	field := v.Graph.Field()
	here, _ := v.Graph.Position(p.Holder)
	bestDist := field.Distance(here, p.DstPos)
	best := -1
	for _, n := range v.Graph.Neighbors(p.Holder) {
		if !r.params.AllowLoops && p.Visited(n) {
			continue
		}
		pos, _ := v.Graph.Position(n)
		if d := field.Distance(pos, p.DstPos); d < bestDist {
			best, bestDist = n, d
		}
	}
	if best >= 0 {
		return forward(best)
	}
	if p.Waiting && v.Tick-p.WaitTick > r.params.VoidTicks {
		return drop(ReasonVoid)
	}
	return hold(ReasonVoid)
}
