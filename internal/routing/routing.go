// Routing strategies deciding each packet's next hop
package routing

import (
	"fmt"

	"vanet-sim/internal/config"
	"vanet-sim/internal/contact"
	"vanet-sim/internal/packet"
)

// Action is the outcome of a routing decision.
type Action int

const (
	Forward Action = iota
	Hold
	Drop
)

func (a Action) String() string {
	switch a {
	case Forward:
		return "forward"
	case Hold:
		return "hold"
	case Drop:
		return "drop"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Drop and hold reasons.
const (
	ReasonTTLExpired      = "ttl_expired"
	ReasonVoid            = "void"
	ReasonMaxWait         = "max_wait"
	ReasonHolderLost      = "holder_lost"
	ReasonDestinationGone = "destination_gone"
	ReasonContention      = "contention"
	ReasonNoRoute         = "no_route"
)

// DropReasons lists every reason a packet can be dropped for.
var DropReasons = []string{
	ReasonTTLExpired,
	ReasonVoid,
	ReasonMaxWait,
	ReasonHolderLost,
	ReasonDestinationGone,
	ReasonContention,
}

// Decision is what a strategy wants done with a packet.
type Decision struct {
	Action  Action
	NextHop int
	Reason  string
}

func forward(id int) Decision { return Decision{Action: Forward, NextHop: id} }
func hold(reason string) Decision { return Decision{Action: Hold, Reason: reason} }
func drop(reason string) Decision { return Decision{Action: Drop, Reason: reason} }

// View is the state a decision may look at.
type View struct {
	Graph *contact.Graph
	Now   float64
	Tick  int
}

// Strategy picks next hops. Implementations are not safe for concurrent use.
type Strategy interface {
	Kind() config.Strategy
	NextHop(p *packet.Packet, v View) Decision
	// Refresh is called once per tick after the graph rebuild and returns
	// the control bytes spent.
	Refresh(g *contact.Graph, tick int) int
}

// New builds the strategy for kind.
func New(kind config.Strategy, params config.Routing) (Strategy, error) {
	switch kind {
	case config.TopologyBased:
		return NewTopology(params), nil
	case config.Geographical:
		return NewGeographic(params), nil
	case config.Hybrid:
		return NewHybrid(params), nil
	}
	return nil, fmt.Errorf("%w: unknown strategy %q", config.ErrInvalidConfig, kind)
}

// precheck applies the rules shared by every strategy.
func precheck(p *packet.Packet, v View) (Decision, bool) {
	switch {
	case !v.Graph.Has(p.Holder):
		return drop(ReasonHolderLost), true
	case !v.Graph.Has(p.Dst):
		return drop(ReasonDestinationGone), true
	case p.Expired(v.Now):
		return drop(ReasonTTLExpired), true
	}
	return Decision{}, false
}
