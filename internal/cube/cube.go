// Package cube holds spectral cubes, boolean masks over them, and masked
// views in which excluded voxels are treated as absent.
package cube

import (
	"errors"
	"fmt"
	"math"

	"github.com/vk/cubeproducts/internal/fits"
	"github.com/vk/cubeproducts/internal/wcs"
)

// ErrGridMismatch is returned when two arrays that must share a pixel grid do not.
var ErrGridMismatch = errors.New("cube: pixel grids differ")

// Shape is the (x, y, spectral) extent of a cube.
type Shape struct {
	Nx, Ny, Nz int
}

// Size returns the number of voxels.
func (s Shape) Size() int {
	return s.Nx * s.Ny * s.Nz
}

// Pixels returns the number of spatial pixels.
func (s Shape) Pixels() int {
	return s.Nx * s.Ny
}

// Index returns the flat FITS-order offset of voxel (x, y, z).
func (s Shape) Index(x, y, z int) int {
	return x + s.Nx*(y+s.Ny*z)
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Nx, s.Ny, s.Nz)
}

// Cube is a three-dimensional image. NaN marks blank voxels.
type Cube struct {
	Shape
	Data   []float64
	Header *fits.Header
	WCS    *wcs.WCS
}

// New allocates a zero-filled cube with the given shape and coordinates.
func New(shape Shape, header *fits.Header, w *wcs.WCS) *Cube {
	return &Cube{Shape: shape, Data: make([]float64, shape.Size()), Header: header, WCS: w}
}

// At returns the value of voxel (x, y, z).
func (c *Cube) At(x, y, z int) float64 {
	return c.Data[c.Index(x, y, z)]
}

// Set assigns the value of voxel (x, y, z).
func (c *Cube) Set(x, y, z int, v float64) {
	c.Data[c.Index(x, y, z)] = v
}

// BUnit returns the brightness unit, defaulting to K.
func (c *Cube) BUnit() string {
	if c.Header != nil {
		if u, ok := c.Header.String("BUNIT"); ok && u != "" {
			return u
		}
	}
	return "K"
}

// Read loads a cube from a FITS file. A fourth axis is accepted only when it
// is degenerate (a single Stokes plane).
func Read(path string) (*Cube, error) {
	img, err := fits.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromImage(img)
}

// FromImage interprets a FITS image as a cube.
func FromImage(img *fits.Image) (*Cube, error) {
	axes := img.Axes
	for len(axes) > 3 && axes[len(axes)-1] == 1 {
		axes = axes[:len(axes)-1]
	}
	if len(axes) != 3 {
		return nil, fmt.Errorf("cube: expected 3 non-degenerate axes, got %v", img.Axes)
	}
	w, err := wcs.FromHeader(img.Header, 3)
	if err != nil {
		return nil, err
	}
	shape := Shape{Nx: axes[0], Ny: axes[1], Nz: axes[2]}
	return &Cube{
		Shape:  shape,
		Data:   img.Data[:shape.Size()],
		Header: img.Header,
		WCS:    w,
	}, nil
}

// Mask is a boolean array over a cube's voxels.
type Mask struct {
	Shape
	Bits []bool
}

// NewMask allocates an all-false mask.
func NewMask(shape Shape) *Mask {
	return &Mask{Shape: shape, Bits: make([]bool, shape.Size())}
}

// At reports whether voxel (x, y, z) is set.
func (m *Mask) At(x, y, z int) bool {
	return m.Bits[m.Index(x, y, z)]
}

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Equal reports whether both masks have the same shape and contents.
func (m *Mask) Equal(o *Mask) bool {
	if m.Shape != o.Shape {
		return false
	}
	for i := range m.Bits {
		if m.Bits[i] != o.Bits[i] {
			return false
		}
	}
	return true
}

// Or returns the pointwise union of m and o. Masks from different pixel grids
// are rejected rather than reshaped.
func (m *Mask) Or(o *Mask) (*Mask, error) {
	if m.Shape != o.Shape {
		return nil, fmt.Errorf("%w: %s vs %s", ErrGridMismatch, m.Shape, o.Shape)
	}
	out := NewMask(m.Shape)
	for i := range out.Bits {
		out.Bits[i] = m.Bits[i] || o.Bits[i]
	}
	return out, nil
}

// Ints returns the mask as 0/1 values for writing.
func (m *Mask) Ints() []float64 {
	out := make([]float64, len(m.Bits))
	for i, b := range m.Bits {
		if b {
			out[i] = 1
		}
	}
	return out
}

// Masked is a read-only view of a cube restricted to the voxels of a mask.
type Masked struct {
	*Cube
	Mask *Mask
}

// Apply pairs a cube with a mask of the same shape.
func Apply(c *Cube, m *Mask) (*Masked, error) {
	if c.Shape != m.Shape {
		return nil, fmt.Errorf("%w: cube %s vs mask %s", ErrGridMismatch, c.Shape, m.Shape)
	}
	return &Masked{Cube: c, Mask: m}, nil
}

// Value returns the voxel value and whether it contributes: the mask must be
// set and the value finite.
func (m *Masked) Value(x, y, z int) (float64, bool) {
	i := m.Index(x, y, z)
	if !m.Mask.Bits[i] {
		return 0, false
	}
	v := m.Data[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
