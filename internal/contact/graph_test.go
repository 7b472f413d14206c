package contact

import (
	"math/rand"
	"testing"

	"vanet-sim/internal/mobility"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bruteForce(field mobility.Field, vs []mobility.Vehicle, r float64) map[pair]bool {
	out := make(map[pair]bool)
	for i := range vs {
		for j := i + 1; j < len(vs); j++ {
			if field.Distance(vs[i].Pos, vs[j].Pos) <= r {
				out[key(vs[i].ID, vs[j].ID)] = true
			}
		}
	}
	return out
}

func TestBuildMatchesBruteForce(t *testing.T) {
	cases := []struct {
		name  string
		field mobility.Field
		r     float64
		n     int
	}{
		{"default demo", mobility.Field{Width: 600, Height: 400}, 150, 20},
		{"dense small range", mobility.Field{Width: 1000, Height: 1000}, 40, 300},
		{"range larger than field", mobility.Field{Width: 100, Height: 80}, 150, 15},
		{"two columns", mobility.Field{Width: 200, Height: 90}, 95, 40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			vs := make([]mobility.Vehicle, tc.n)
			for i := range vs {
				vs[i] = mobility.Vehicle{ID: i, Pos: mobility.Point{
					X: rng.Float64() * tc.field.Width,
					Y: rng.Float64() * tc.field.Height,
				}}
			}
			g := Build(tc.field, vs, tc.r)
			want := bruteForce(tc.field, vs, tc.r)

			require.Len(t, g.Edges(), len(want))
			for _, e := range g.Edges() {
				assert.Less(t, e.A, e.B)
				assert.True(t, want[pair{e.A, e.B}], "unexpected edge %d-%d", e.A, e.B)
				assert.Greater(t, e.Quality, 0.0)
				assert.LessOrEqual(t, e.Quality, 1.0)
			}
		})
	}
}

func TestBuildWrapsAcrossEdges(t *testing.T) {
	field := mobility.Field{Width: 600, Height: 400}
	vs := []mobility.Vehicle{
		{ID: 2, Pos: mobility.Point{X: 595, Y: 10}},
		{ID: 1, Pos: mobility.Point{X: 5, Y: 395}},
		{ID: 3, Pos: mobility.Point{X: 300, Y: 200}},
	}
	g := Build(field, vs, 20)

	e, ok := g.Link(2, 1)
	require.True(t, ok)
	assert.Equal(t, 1, e.A)
	assert.Equal(t, 2, e.B)
	assert.InDelta(t, 1-e.Distance/20, e.Quality, 1e-9)
	assert.Equal(t, []int{2}, g.Neighbors(1))
	assert.Equal(t, 0, g.Degree(3))
	assert.Equal(t, []int{1, 2, 3}, g.Nodes())
}

func TestBuildQueries(t *testing.T) {
	field := mobility.Field{Width: 1000, Height: 1000}
	vs := []mobility.Vehicle{
		{ID: 5, Pos: mobility.Point{X: 100, Y: 100}},
		{ID: 1, Pos: mobility.Point{X: 150, Y: 100}},
		{ID: 3, Pos: mobility.Point{X: 200, Y: 100}},
		{ID: 9, Pos: mobility.Point{X: 300, Y: 100}},
	}
	g := Build(field, vs, 100)

	assert.Equal(t, []int{3, 5}, g.Neighbors(1))
	assert.Equal(t, []int{1, 5, 9}, g.Neighbors(3))
	assert.Equal(t, 3, g.Degree(3))
	assert.True(t, g.Has(9))
	assert.False(t, g.Has(4))
	p, ok := g.Position(9)
	require.True(t, ok)
	assert.Equal(t, 300.0, p.X)

	// Exactly at range: connected with minimal quality.
	e, ok := g.Link(3, 9)
	require.True(t, ok)
	assert.Equal(t, minQuality, e.Quality)

	_, ok = g.Link(1, 9)
	assert.False(t, ok)
}

func TestBuildDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	field := mobility.Field{Width: 500, Height: 500}
	vs := make([]mobility.Vehicle, 50)
	for i := range vs {
		vs[i] = mobility.Vehicle{ID: i, Pos: mobility.Point{X: rng.Float64() * 500, Y: rng.Float64() * 500}}
	}
	a := Build(field, vs, 80)
	b := Build(field, vs, 80)
	assert.Equal(t, a.Edges(), b.Edges())
}

func TestBuildEmpty(t *testing.T) {
	g := Build(mobility.Field{Width: 10, Height: 10}, nil, 5)
	assert.Empty(t, g.Edges())
	assert.Empty(t, g.Nodes())
	assert.Empty(t, g.Neighbors(0))
}
