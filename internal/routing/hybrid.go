package routing

import (
	"vanet-sim/internal/config"
	"vanet-sim/internal/contact"
	"vanet-sim/internal/packet"
)

// HybridRouter switches between its topology and geographic parts on the
// holder's degree: sparse neighborhoods use tables, dense ones go greedy.
type HybridRouter struct {
	threshold  int
	topology   *TopologyRouter
	geographic *GeographicRouter
}

// NewHybrid returns a hybrid router with its own topology and geographic parts.
func NewHybrid(params config.Routing) *HybridRouter {
	return &HybridRouter{
		threshold:  params.HybridDensityThreshold,
		topology:   NewTopology(params),
		geographic: NewGeographic(params),
	}
}

func (h *HybridRouter) Kind() config.Strategy { return config.Hybrid }

func (h *HybridRouter) Refresh(g *contact.Graph, tick int) int {
	return h.topology.Refresh(g, tick) + h.geographic.Refresh(g, tick)
}

// Mode returns the strategy the hybrid router uses for holder in g.
func (h *HybridRouter) Mode(g *contact.Graph, holder int) config.Strategy {
	if g.Degree(holder) < h.threshold {
		return config.TopologyBased
	}
	return config.Geographical
}

func (h *HybridRouter) NextHop(p *packet.Packet, v View) Decision {
	if h.Mode(v.Graph, p.Holder) == config.TopologyBased {
		return h.topology.NextHop(p, v)
	}
	return h.geographic.NextHop(p, v)
}
