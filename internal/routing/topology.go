package routing

import (
	"math"

	"vanet-sim/internal/config"
	"vanet-sim/internal/contact"
	"vanet-sim/internal/packet"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// TopologyRouter forwards along shortest paths computed from a periodic
// topology snapshot. Between refreshes the tables may be stale.
type TopologyRouter struct {
	params      config.Routing
	refreshed   bool
	lastRefresh int
	snapshot    *simple.WeightedUndirectedGraph
	neighbors   map[int][]int
	// trees caches shortest-path trees per destination for the current snapshot.
	trees map[int]path.Shortest
}

// NewTopology returns a topology-based router.
func NewTopology(params config.Routing) *TopologyRouter {
	return &TopologyRouter{params: params}
}

func (t *TopologyRouter) Kind() config.Strategy { return config.TopologyBased }

// Refresh rebuilds the tables every TopologyRefreshTicks ticks. Each rebuild
// costs ControlBytesPerVehicle for every vehicle in the graph.
func (t *TopologyRouter) Refresh(g *contact.Graph, tick int) int {
	every := max(1, t.params.TopologyRefreshTicks)
	if t.refreshed && tick-t.lastRefresh < every {
		return 0
	}
	t.refreshed = true
	t.lastRefresh = tick

	snap := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	nodes := g.Nodes()
	for _, id := range nodes {
		snap.AddNode(simple.Node(id))
	}
	for _, e := range g.Edges() {
		snap.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(e.A), T: simple.Node(e.B), W: 1})
	}
	t.snapshot = snap
	t.neighbors = make(map[int][]int, len(nodes))
	for _, id := range nodes {
		t.neighbors[id] = g.Neighbors(id)
	}
	t.trees = make(map[int]path.Shortest)
	return t.params.ControlBytesPerVehicle * len(nodes)
}

// LastRefresh returns the tick of the latest table rebuild.
func (t *TopologyRouter) LastRefresh() (int, bool) { return t.lastRefresh, t.refreshed }

func (t *TopologyRouter) tree(dst int) (path.Shortest, bool) {
	if sp, ok := t.trees[dst]; ok {
		return sp, true
	}
	root := t.snapshot.Node(int64(dst))
	if root == nil {
		return path.Shortest{}, false
	}
	sp := path.DijkstraFrom(root, t.snapshot)
	t.trees[dst] = sp
	return sp, true
}

// NextHop picks the lowest-id table neighbor one hop closer to the destination
// whose link still exists. Unreachable destinations and stale paths hold.
func (t *TopologyRouter) NextHop(p *packet.Packet, v View) Decision {
	if d, done := precheck(p, v); done {
		return d
	}
	if t.snapshot == nil {
		return hold(ReasonNoRoute)
	}
	sp, ok := t.tree(p.Dst)
	if !ok {
		return hold(ReasonNoRoute)
	}
	dist := sp.WeightTo(int64(p.Holder))
	if math.IsInf(dist, 1) {
		return hold(ReasonNoRoute)
	}
	for _, n := range t.neighbors[p.Holder] {
		if sp.WeightTo(int64(n)) != dist-1 {
			continue
		}
		if !t.params.AllowLoops && p.Visited(n) {
			continue
		}
		if _, live := v.Graph.Link(p.Holder, n); !live {
			continue
		}
		return forward(n)
	}
	return hold(ReasonNoRoute)
}
