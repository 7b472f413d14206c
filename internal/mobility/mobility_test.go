package mobility

import (
	"math"
	"math/rand"
	"testing"

	"vanet-sim/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		Field:       Field{Width: 600, Height: 400},
		MaxVehicles: 20,
		Density:     0.5,
		SpeedMin:    2,
		SpeedMax:    7,
		RadioRange:  150,
	}
}

func TestFieldDistanceWraps(t *testing.T) {
	f := Field{Width: 100, Height: 100}
	assert.InDelta(t, 5, f.Distance(Point{1, 50}, Point{96, 50}), 1e-9)
	assert.InDelta(t, 5, f.Distance(Point{50, 98}, Point{50, 3}), 1e-9)
	assert.InDelta(t, 50, f.Distance(Point{0, 0}, Point{50, 0}), 1e-9)
	assert.InDelta(t, math.Hypot(3, 4), f.Distance(Point{10, 10}, Point{13, 14}), 1e-9)
}

func TestFieldWrap(t *testing.T) {
	f := Field{Width: 100, Height: 50}
	assert.Equal(t, Point{5, 45}, f.Wrap(Point{105, -5}))
	assert.Equal(t, Point{0, 0}, f.Wrap(Point{100, 50}))
}

func TestNewModelPopulation(t *testing.T) {
	m, err := NewModel(testParams(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Equal(t, 10, m.Count())

	vs := m.Vehicles()
	for i, v := range vs {
		assert.Equal(t, i, v.ID)
		assert.GreaterOrEqual(t, v.Speed, 2.0)
		assert.LessOrEqual(t, v.Speed, 7.0)
		assert.Equal(t, 150.0, v.Range)
		assert.True(t, v.Pos.X >= 0 && v.Pos.X < 600 && v.Pos.Y >= 0 && v.Pos.Y < 400)
	}
}

func TestNewModelRejectsBadParams(t *testing.T) {
	p := testParams()
	p.SpeedMin, p.SpeedMax = 5, 1
	_, err := NewModel(p, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	p = testParams()
	p.Density = 2
	_, err = NewModel(p, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSetDensityInvariant(t *testing.T) {
	m, err := NewModel(testParams(), rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	for _, d := range []float64{0, 0.05, 0.33, 1, 0.5, 0.99, 0.2} {
		_, err := m.SetDensity(d)
		require.NoError(t, err)
		assert.Equal(t, int(math.Floor(d*20)), m.Count(), "density %v", d)
	}
}

func TestSetDensityRemovesHighestIDs(t *testing.T) {
	m, err := NewModel(testParams(), rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	removed, err := m.SetDensity(0.35)
	require.NoError(t, err)
	assert.Equal(t, []int{9, 8, 7}, removed)

	// New vehicles never reuse ids.
	_, err = m.SetDensity(0.5)
	require.NoError(t, err)
	var ids []int
	for _, v := range m.Vehicles() {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 10, 11, 12}, ids)

	_, err = m.SetDensity(-0.1)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Equal(t, 10, m.Count())
}

func TestAdvanceWraps(t *testing.T) {
	m, err := NewModel(testParams(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.NoError(t, m.Place([]Vehicle{
		{ID: 1, Pos: Point{595, 200}, Speed: 10, Heading: 0},
		{ID: 2, Pos: Point{100, 2}, Speed: 4, Heading: -math.Pi / 2},
	}))

	m.Advance(1)
	v1, ok := m.Vehicle(1)
	require.True(t, ok)
	assert.InDelta(t, 5, v1.Pos.X, 1e-9)
	assert.InDelta(t, 200, v1.Pos.Y, 1e-9)

	v2, _ := m.Vehicle(2)
	assert.InDelta(t, 100, v2.Pos.X, 1e-9)
	assert.InDelta(t, 398, v2.Pos.Y, 1e-9)
}

func TestAdvanceIsDeterministic(t *testing.T) {
	a, err := NewModel(testParams(), rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	b, err := NewModel(testParams(), rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		a.Advance(0.5)
		b.Advance(0.5)
	}
	assert.Equal(t, a.Vehicles(), b.Vehicles())
}

func TestPlace(t *testing.T) {
	m, err := NewModel(testParams(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	err = m.Place([]Vehicle{{ID: 4}, {ID: 4}})
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	require.NoError(t, m.Place([]Vehicle{{ID: 7, Pos: Point{1, 1}}, {ID: 3, Pos: Point{2, 2}}}))
	vs := m.Vehicles()
	require.Len(t, vs, 2)
	assert.Equal(t, 3, vs[0].ID)
	assert.Equal(t, 150.0, vs[0].Range)
	assert.Equal(t, 2, m.Params().MaxVehicles)

	// Ids are never reused: the 10 vehicles spawned by NewModel took 0..9.
	_, err = m.SetMaxVehicles(3)
	require.NoError(t, err)
	vs = m.Vehicles()
	require.Len(t, vs, 3)
	assert.Equal(t, 10, vs[2].ID)
}

func TestSetters(t *testing.T) {
	m, err := NewModel(testParams(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	require.ErrorIs(t, m.SetField(Field{Width: 0, Height: 10}), config.ErrInvalidConfig)
	require.NoError(t, m.SetField(Field{Width: 50, Height: 50}))
	for _, v := range m.Vehicles() {
		assert.True(t, v.Pos.X < 50 && v.Pos.Y < 50)
	}

	require.ErrorIs(t, m.SetRadioRange(0), config.ErrInvalidConfig)
	require.NoError(t, m.SetRadioRange(30))
	for _, v := range m.Vehicles() {
		assert.Equal(t, 30.0, v.Range)
	}

	require.ErrorIs(t, m.SetSpeedBounds(3, 1), config.ErrInvalidConfig)
	require.NoError(t, m.SetSpeedBounds(3, 4))
	for _, v := range m.Vehicles() {
		assert.True(t, v.Speed >= 3 && v.Speed <= 4)
	}
}
