// Package moments collapses masked spectral cubes into two-dimensional
// summary maps (moments, peak statistics, line widths) with formal errors.
package moments

import (
	"fmt"
	"math"

	"github.com/vk/cubeproducts/internal/cube"
)

// Kind enumerates the product maps in output order.
type Kind int

const (
	Moment0 Kind = iota // integrated intensity
	Moment1             // intensity-weighted velocity
	Moment2             // velocity dispersion
	EW                  // effective width
	TMax                // peak intensity
	VMax                // velocity of the peak channel
	VQuad               // quadratic-fit velocity of the peak
)

// Kinds lists every product kind in output order.
var Kinds = []Kind{Moment0, Moment1, Moment2, EW, TMax, VMax, VQuad}

type unitKind int

const (
	unitIntensityVelocity unitKind = iota
	unitVelocity
	unitIntensity
)

type kindInfo struct {
	name  string
	unit  unitKind
	pixel func(s *spectrum) (value, err float64)
}

var kindTable = [...]kindInfo{
	Moment0: {name: "mom0", unit: unitIntensityVelocity, pixel: moment0},
	Moment1: {name: "mom1", unit: unitVelocity, pixel: moment1},
	Moment2: {name: "mom2", unit: unitVelocity, pixel: moment2},
	EW:      {name: "ew", unit: unitVelocity, pixel: effectiveWidth},
	TMax:    {name: "tmax", unit: unitIntensity, pixel: peakIntensity},
	VMax:    {name: "vmax", unit: unitVelocity, pixel: peakVelocity},
	VQuad:   {name: "vquad", unit: unitVelocity, pixel: quadraticVelocity},
}

func (k Kind) valid() bool {
	return k >= Moment0 && int(k) < len(kindTable)
}

// String returns the short name used in file suffixes.
func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindTable[k].name
}

// Suffix is appended to a product basename for the value map.
func (k Kind) Suffix() string {
	return "_" + k.String()
}

// ErrorSuffix is appended to a product basename for the error map.
func (k Kind) ErrorSuffix() string {
	return "_e" + k.String()
}

// Unit returns the map unit given the cube brightness unit.
func (k Kind) Unit(bunit string) string {
	switch kindTable[k].unit {
	case unitIntensityVelocity:
		return bunit + " km/s"
	case unitIntensity:
		return bunit
	}
	return "km/s"
}

// Map is a two-dimensional product and its formal error.
type Map struct {
	Nx, Ny int
	Value  []float64
	Error  []float64
	Unit   string
}

// Compute collapses the masked cube along its spectral axis. Voxels outside
// the mask or blank in the cube do not contribute.
func (k Kind) Compute(c, rms *cube.Masked) (*Map, error) {
	if !k.valid() {
		return nil, fmt.Errorf("unknown product kind %d", int(k))
	}
	if c.Shape != rms.Shape {
		return nil, fmt.Errorf("%w: cube %s vs noise %s", cube.ErrGridMismatch, c.Shape, rms.Shape)
	}
	vel, err := c.WCS.Velocities(c.Nz)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	dv, err := c.WCS.ChannelWidth()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}

	out := &Map{
		Nx:    c.Nx,
		Ny:    c.Ny,
		Value: make([]float64, c.Pixels()),
		Error: make([]float64, c.Pixels()),
		Unit:  k.Unit(c.BUnit()),
	}
	s := &spectrum{vel: vel, dv: dv}
	pixel := kindTable[k].pixel
	for y := 0; y < c.Ny; y++ {
		for x := 0; x < c.Nx; x++ {
			s.load(c, rms, x, y)
			i := x + c.Nx*y
			out.Value[i], out.Error[i] = pixel(s)
		}
	}
	return out, nil
}

// spectrum holds the contributing channels of one spatial pixel.
type spectrum struct {
	vel []float64
	dv  float64

	t, s, v []float64
	z       []int
	// full-length views used for neighbour lookups around the peak
	fullT, fullS []float64
	present      []bool
}

func (sp *spectrum) load(c, rms *cube.Masked, x, y int) {
	sp.t, sp.s, sp.v, sp.z = sp.t[:0], sp.s[:0], sp.v[:0], sp.z[:0]
	if len(sp.present) != c.Nz {
		sp.fullT = make([]float64, c.Nz)
		sp.fullS = make([]float64, c.Nz)
		sp.present = make([]bool, c.Nz)
	}
	for z := 0; z < c.Nz; z++ {
		t, ok := c.Value(x, y, z)
		sp.present[z] = ok
		if !ok {
			continue
		}
		s, sok := rms.Value(x, y, z)
		if !sok {
			s = math.NaN()
		}
		sp.fullT[z], sp.fullS[z] = t, s
		sp.t = append(sp.t, t)
		sp.s = append(sp.s, s)
		sp.v = append(sp.v, sp.vel[z])
		sp.z = append(sp.z, z)
	}
}

func (sp *spectrum) sum() float64 {
	total := 0.0
	for _, t := range sp.t {
		total += t
	}
	return total
}

func (sp *spectrum) peak() int {
	best := -1
	for i, t := range sp.t {
		if best < 0 || t > sp.t[best] {
			best = i
		}
	}
	return best
}

func (sp *spectrum) centroid() (m1, weight float64, ok bool) {
	weight = sp.sum()
	if len(sp.t) == 0 || weight == 0 {
		return math.NaN(), weight, false
	}
	num := 0.0
	for i, t := range sp.t {
		num += t * sp.v[i]
	}
	return num / weight, weight, true
}

func moment0(sp *spectrum) (float64, float64) {
	if len(sp.t) == 0 {
		return 0, math.NaN()
	}
	var variance float64
	for _, s := range sp.s {
		variance += s * s
	}
	return sp.sum() * sp.dv, math.Sqrt(variance) * sp.dv
}

func moment1(sp *spectrum) (float64, float64) {
	m1, w, ok := sp.centroid()
	if !ok {
		return math.NaN(), math.NaN()
	}
	var acc float64
	for i, s := range sp.s {
		d := sp.v[i] - m1
		acc += s * s * d * d
	}
	return m1, math.Sqrt(acc) / math.Abs(w)
}

func moment2(sp *spectrum) (float64, float64) {
	m1, w, ok := sp.centroid()
	if !ok {
		return math.NaN(), math.NaN()
	}
	var num float64
	for i, t := range sp.t {
		d := sp.v[i] - m1
		num += t * d * d
	}
	variance := num / w
	if variance < 0 {
		return math.NaN(), math.NaN()
	}
	m2 := math.Sqrt(variance)
	if m2 == 0 {
		return 0, math.NaN()
	}
	var acc float64
	for i, s := range sp.s {
		d := sp.v[i] - m1
		e := d*d - variance
		acc += s * s * e * e
	}
	return m2, math.Sqrt(acc) / (2 * m2 * math.Abs(w))
}

func effectiveWidth(sp *spectrum) (float64, float64) {
	p := sp.peak()
	if p < 0 || sp.t[p] <= 0 {
		return math.NaN(), math.NaN()
	}
	m0, em0 := moment0(sp)
	tmax, etmax := sp.t[p], sp.s[p]
	norm := tmax * math.Sqrt(2*math.Pi)
	ew := m0 / norm
	a := em0 / norm
	b := m0 * etmax / (tmax * norm)
	return ew, math.Hypot(a, b)
}

func peakIntensity(sp *spectrum) (float64, float64) {
	p := sp.peak()
	if p < 0 {
		return math.NaN(), math.NaN()
	}
	return sp.t[p], sp.s[p]
}

func peakVelocity(sp *spectrum) (float64, float64) {
	p := sp.peak()
	if p < 0 {
		return math.NaN(), math.NaN()
	}
	return sp.v[p], sp.dv / 2
}

// quadraticVelocity refines the peak velocity with the vertex of the parabola
// through the peak channel and its two neighbours. It falls back to the peak
// velocity when a neighbour does not contribute or the curvature is not negative.
func quadraticVelocity(sp *spectrum) (float64, float64) {
	p := sp.peak()
	if p < 0 {
		return math.NaN(), math.NaN()
	}
	z := sp.z[p]
	if z == 0 || z == len(sp.present)-1 || !sp.present[z-1] || !sp.present[z+1] {
		return peakVelocity(sp)
	}
	a, b, c := sp.fullT[z-1], sp.fullT[z], sp.fullT[z+1]
	d := a - 2*b + c
	if d >= 0 {
		return peakVelocity(sp)
	}
	offset := 0.5 * (a - c) / d
	step := sp.vel[z+1] - sp.vel[z]

	d2 := d * d
	ga, gb, gc := (c-b)/d2, (a-c)/d2, (b-a)/d2
	sa, sb, sc := sp.fullS[z-1], sp.fullS[z], sp.fullS[z+1]
	spread := math.Sqrt(ga*ga*sa*sa + gb*gb*sb*sb + gc*gc*sc*sc)
	return sp.vel[z] + offset*step, math.Abs(step) * spread
}
