// Vehicle mobility on a wrap-around field
package mobility

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"vanet-sim/internal/config"
)

// Point is a position on the field.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Field is a toroidal area: leaving one edge re-enters at the opposite edge.
type Field struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Wrap maps p into [0,Width) x [0,Height).
func (f Field) Wrap(p Point) Point {
	return Point{X: wrap(p.X, f.Width), Y: wrap(p.Y, f.Height)}
}

func wrap(v, size float64) float64 {
	if size <= 0 {
		return 0
	}
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	if v >= size {
		v = 0
	}
	return v
}

// Distance returns the shortest euclidean distance between a and b on the torus.
func (f Field) Distance(a, b Point) float64 {
	dx := axisDelta(a.X, b.X, f.Width)
	dy := axisDelta(a.Y, b.Y, f.Height)
	return math.Hypot(dx, dy)
}

func axisDelta(a, b, size float64) float64 {
	d := math.Abs(a - b)
	if size > 0 && d > size/2 {
		d = size - d
	}
	return d
}

// Vehicle is a node of the network.
type Vehicle struct {
	ID      int     `json:"id"`
	Pos     Point   `json:"pos"`
	Speed   float64 `json:"speed"`
	Heading float64 `json:"heading"`
	Range   float64 `json:"range"`
}

// Params configures a Model.
type Params struct {
	Field       Field
	MaxVehicles int
	Density     float64
	SpeedMin    float64
	SpeedMax    float64
	RadioRange  float64
}

// ParamsFromConfig extracts the mobility settings of cfg.
func ParamsFromConfig(cfg config.SimulationConfig) Params {
	return Params{
		Field:       Field{Width: cfg.Field.Width, Height: cfg.Field.Height},
		MaxVehicles: cfg.MaxVehicles,
		Density:     cfg.Density,
		SpeedMin:    cfg.SpeedMin,
		SpeedMax:    cfg.SpeedMax,
		RadioRange:  cfg.RadioRange,
	}
}

// Model owns every vehicle. Callers only ever see copies.
type Model struct {
	params   Params
	rand     *rand.Rand
	vehicles []*Vehicle // sorted by id
	nextID   int
}

// NewModel creates a model populated to floor(density * maxVehicles) vehicles.
func NewModel(p Params, r *rand.Rand) (*Model, error) {
	if p.Field.Width <= 0 || p.Field.Height <= 0 {
		return nil, fmt.Errorf("%w: field must be positive, got %vx%v", config.ErrInvalidConfig, p.Field.Width, p.Field.Height)
	}
	if err := checkSpeeds(p.SpeedMin, p.SpeedMax); err != nil {
		return nil, err
	}
	if p.MaxVehicles < 0 {
		return nil, fmt.Errorf("%w: max vehicles must be >= 0, got %d", config.ErrInvalidConfig, p.MaxVehicles)
	}
	m := &Model{params: p, rand: r}
	if _, err := m.SetDensity(p.Density); err != nil {
		return nil, err
	}
	return m, nil
}

func checkSpeeds(lo, hi float64) error {
	if lo < 0 || hi < lo {
		return fmt.Errorf("%w: invalid speed bounds [%v,%v]", config.ErrInvalidConfig, lo, hi)
	}
	return nil
}

// Field returns the current field.
func (m *Model) Field() Field { return m.params.Field }

// Params returns the current parameters.
func (m *Model) Params() Params { return m.params }

// Advance moves every vehicle by speed*dt along its heading.
func (m *Model) Advance(dt float64) {
	if dt <= 0 {
		return
	}
	for _, v := range m.vehicles {
		v.Pos = m.params.Field.Wrap(Point{
			X: v.Pos.X + math.Cos(v.Heading)*v.Speed*dt,
			Y: v.Pos.Y + math.Sin(v.Heading)*v.Speed*dt,
		})
	}
}

// SetDensity grows or shrinks the population to floor(d * maxVehicles).
// Vehicles with the highest ids are removed first; their ids are returned.
func (m *Model) SetDensity(d float64) ([]int, error) {
	if err := checkDensity(d); err != nil {
		return nil, err
	}
	m.params.Density = d
	return m.resize(config.VehicleCount(d, m.params.MaxVehicles)), nil
}

// SetMaxVehicles changes the population ceiling and resizes accordingly.
func (m *Model) SetMaxVehicles(n int) ([]int, error) {
	return m.SetPopulation(n, m.params.Density)
}

// SetPopulation changes the ceiling and the density in one resize.
func (m *Model) SetPopulation(maxVehicles int, d float64) ([]int, error) {
	if maxVehicles < 0 {
		return nil, fmt.Errorf("%w: max vehicles must be >= 0, got %d", config.ErrInvalidConfig, maxVehicles)
	}
	if err := checkDensity(d); err != nil {
		return nil, err
	}
	m.params.MaxVehicles = maxVehicles
	return m.SetDensity(d)
}

func checkDensity(d float64) error {
	if d < 0 || d > 1 || math.IsNaN(d) {
		return fmt.Errorf("%w: density must be in [0,1], got %v", config.ErrInvalidConfig, d)
	}
	return nil
}

func (m *Model) resize(target int) []int {
	var removed []int
	for len(m.vehicles) > target {
		last := m.vehicles[len(m.vehicles)-1]
		removed = append(removed, last.ID)
		m.vehicles = m.vehicles[:len(m.vehicles)-1]
	}
	for len(m.vehicles) < target {
		m.vehicles = append(m.vehicles, m.spawn())
	}
	return removed
}

func (m *Model) spawn() *Vehicle {
	v := &Vehicle{
		ID: m.nextID,
		Pos: Point{
			X: m.rand.Float64() * m.params.Field.Width,
			Y: m.rand.Float64() * m.params.Field.Height,
		},
		Speed:   m.params.SpeedMin + m.rand.Float64()*(m.params.SpeedMax-m.params.SpeedMin),
		Heading: m.rand.Float64() * 2 * math.Pi,
		Range:   m.params.RadioRange,
	}
	m.nextID++
	return v
}

// Place replaces the population with explicitly positioned vehicles.
// The model then treats them as a full population (density 1).
func (m *Model) Place(vs []Vehicle) error {
	seen := make(map[int]bool, len(vs))
	placed := make([]*Vehicle, 0, len(vs))
	next := 0
	for _, v := range vs {
		if seen[v.ID] {
			return fmt.Errorf("%w: duplicate vehicle id %d", config.ErrInvalidConfig, v.ID)
		}
		if v.ID < 0 || v.Speed < 0 {
			return fmt.Errorf("%w: vehicle %d has negative id or speed", config.ErrInvalidConfig, v.ID)
		}
		seen[v.ID] = true
		cp := v
		cp.Pos = m.params.Field.Wrap(cp.Pos)
		if cp.Range <= 0 {
			cp.Range = m.params.RadioRange
		}
		placed = append(placed, &cp)
		if v.ID >= next {
			next = v.ID + 1
		}
	}
	sort.Slice(placed, func(i, j int) bool { return placed[i].ID < placed[j].ID })
	m.vehicles = placed
	m.params.MaxVehicles = len(placed)
	m.params.Density = 1
	if next > m.nextID {
		m.nextID = next
	}
	return nil
}

// SetField changes the field size, wrapping existing positions into it.
func (m *Model) SetField(f Field) error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: field must be positive, got %vx%v", config.ErrInvalidConfig, f.Width, f.Height)
	}
	m.params.Field = f
	for _, v := range m.vehicles {
		v.Pos = f.Wrap(v.Pos)
	}
	return nil
}

// SetRadioRange updates the range of every vehicle.
func (m *Model) SetRadioRange(r float64) error {
	if r <= 0 {
		return fmt.Errorf("%w: radio range must be > 0, got %v", config.ErrInvalidConfig, r)
	}
	m.params.RadioRange = r
	for _, v := range m.vehicles {
		v.Range = r
	}
	return nil
}

// SetSpeedBounds changes the speed range and clamps current speeds into it.
func (m *Model) SetSpeedBounds(lo, hi float64) error {
	if err := checkSpeeds(lo, hi); err != nil {
		return err
	}
	m.params.SpeedMin, m.params.SpeedMax = lo, hi
	for _, v := range m.vehicles {
		v.Speed = math.Min(math.Max(v.Speed, lo), hi)
	}
	return nil
}

// Vehicles returns copies of all vehicles sorted by id.
func (m *Model) Vehicles() []Vehicle {
	out := make([]Vehicle, len(m.vehicles))
	for i, v := range m.vehicles {
		out[i] = *v
	}
	return out
}

// Vehicle returns a copy of the vehicle with the given id.
func (m *Model) Vehicle(id int) (Vehicle, bool) {
	i := sort.Search(len(m.vehicles), func(i int) bool { return m.vehicles[i].ID >= id })
	if i < len(m.vehicles) && m.vehicles[i].ID == id {
		return *m.vehicles[i], true
	}
	return Vehicle{}, false
}

// Count returns the number of vehicles.
func (m *Model) Count() int { return len(m.vehicles) }
