// Contact graph built from vehicle positions each tick
package contact

import (
	"math"
	"sort"

	"vanet-sim/internal/mobility"
)

// minQuality keeps link quality inside (0,1] for vehicles exactly at range.
const minQuality = 1e-6

// Edge links two vehicles within radio range. A < B always holds.
type Edge struct {
	A        int     `json:"a"`
	B        int     `json:"b"`
	Distance float64 `json:"distance"`
	Quality  float64 `json:"quality"`
}

type pair struct{ a, b int }

func key(a, b int) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

// Graph is an immutable snapshot of vehicle connectivity.
type Graph struct {
	field     mobility.Field
	radio     float64
	nodes     []int
	positions map[int]mobility.Point
	adjacent  map[int][]int
	links     map[pair]Edge
	edges     []Edge
}

// Build computes every pair of vehicles within radioRange of each other.
// Vehicles are bucketed into a wrap-around grid whose cells are at least
// radioRange wide, so only the 3x3 block around each cell is compared.
func Build(field mobility.Field, vehicles []mobility.Vehicle, radioRange float64) *Graph {
	g := &Graph{
		field:     field,
		radio:     radioRange,
		nodes:     make([]int, 0, len(vehicles)),
		positions: make(map[int]mobility.Point, len(vehicles)),
		adjacent:  make(map[int][]int, len(vehicles)),
		links:     make(map[pair]Edge),
	}
	for _, v := range vehicles {
		g.nodes = append(g.nodes, v.ID)
		g.positions[v.ID] = v.Pos
	}
	sort.Ints(g.nodes)
	if radioRange <= 0 || len(vehicles) < 2 {
		return g
	}

	grid := newGrid(field, radioRange)
	for _, v := range vehicles {
		grid.insert(v)
	}

	for cell, members := range grid.cells {
		for _, other := range grid.neighborhood(cell) {
			for _, a := range members {
				for _, b := range grid.cells[other] {
					if a.ID >= b.ID {
						continue
					}
					d := field.Distance(a.Pos, b.Pos)
					if d > radioRange {
						continue
					}
					g.addEdge(a.ID, b.ID, d, radioRange)
				}
			}
		}
	}

	sort.Slice(g.edges, func(i, j int) bool {
		if g.edges[i].A != g.edges[j].A {
			return g.edges[i].A < g.edges[j].A
		}
		return g.edges[i].B < g.edges[j].B
	})
	for id := range g.adjacent {
		sort.Ints(g.adjacent[id])
	}
	return g
}

func (g *Graph) addEdge(a, b int, d, radioRange float64) {
	k := key(a, b)
	if _, ok := g.links[k]; ok {
		return
	}
	q := 1 - d/radioRange
	if q < minQuality {
		q = minQuality
	}
	e := Edge{A: k.a, B: k.b, Distance: d, Quality: q}
	g.links[k] = e
	g.edges = append(g.edges, e)
	g.adjacent[a] = append(g.adjacent[a], b)
	g.adjacent[b] = append(g.adjacent[b], a)
}

type cell struct{ col, row int }

type grid struct {
	cols, rows int
	cellW      float64
	cellH      float64
	cells      map[cell][]mobility.Vehicle
}

func newGrid(field mobility.Field, radioRange float64) *grid {
	cols := max(1, int(math.Floor(field.Width/radioRange)))
	rows := max(1, int(math.Floor(field.Height/radioRange)))
	return &grid{
		cols:  cols,
		rows:  rows,
		cellW: field.Width / float64(cols),
		cellH: field.Height / float64(rows),
		cells: make(map[cell][]mobility.Vehicle),
	}
}

func (gr *grid) insert(v mobility.Vehicle) {
	c := cell{
		col: min(gr.cols-1, max(0, int(v.Pos.X/gr.cellW))),
		row: min(gr.rows-1, max(0, int(v.Pos.Y/gr.cellH))),
	}
	gr.cells[c] = append(gr.cells[c], v)
}

// neighborhood returns the distinct cells of the 3x3 block around c.
// Small grids wrap onto themselves, hence the dedup.
func (gr *grid) neighborhood(c cell) []cell {
	seen := make(map[cell]bool, 9)
	out := make([]cell, 0, 9)
	for dc := -1; dc <= 1; dc++ {
		for dr := -1; dr <= 1; dr++ {
			n := cell{
				col: ((c.col+dc)%gr.cols + gr.cols) % gr.cols,
				row: ((c.row+dr)%gr.rows + gr.rows) % gr.rows,
			}
			if seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Field returns the field the graph was built on.
func (g *Graph) Field() mobility.Field { return g.field }

// RadioRange returns the range used to build the graph.
func (g *Graph) RadioRange() float64 { return g.radio }

// Edges returns all edges ordered by (A, B).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Nodes returns all vehicle ids in ascending order.
func (g *Graph) Nodes() []int {
	out := make([]int, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Has reports whether id was present when the graph was built.
func (g *Graph) Has(id int) bool {
	_, ok := g.positions[id]
	return ok
}

// Position returns the position of id at build time.
func (g *Graph) Position(id int) (mobility.Point, bool) {
	p, ok := g.positions[id]
	return p, ok
}

// Neighbors returns the neighbors of id in ascending order.
func (g *Graph) Neighbors(id int) []int {
	n := g.adjacent[id]
	out := make([]int, len(n))
	copy(out, n)
	return out
}

// Degree returns the number of neighbors of id.
func (g *Graph) Degree(id int) int { return len(g.adjacent[id]) }

// Link returns the edge between a and b, if any.
func (g *Graph) Link(a, b int) (Edge, bool) {
	e, ok := g.links[key(a, b)]
	return e, ok
}
