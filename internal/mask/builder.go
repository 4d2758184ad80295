// Package mask builds binary signal masks from a cube and its noise estimate,
// combines them into hybrid masks, and writes them to disk.
package mask

import (
	"fmt"
	"math"

	"github.com/vk/cubeproducts/internal/cube"
)

// Params controls thresholding. A voxel seeds the mask when it exceeds
// HiThresh times the local noise within a run of at least HiNChan channels;
// the mask then grows into connected voxels above LoThresh within runs of at
// least LoNChan channels.
type Params struct {
	HiThresh float64
	HiNChan  int
	LoThresh float64
	LoNChan  int
}

// DefaultParams returns the thresholds used when none are configured.
func DefaultParams() Params {
	return Params{HiThresh: 5, HiNChan: 2, LoThresh: 5, LoNChan: 2}
}

// Validate checks the thresholds for consistency.
func (p Params) Validate() error {
	if !(p.HiThresh > 0) || !(p.LoThresh > 0) {
		return fmt.Errorf("mask thresholds must be positive (hi=%v, lo=%v)", p.HiThresh, p.LoThresh)
	}
	if p.LoThresh > p.HiThresh {
		return fmt.Errorf("low threshold %v exceeds high threshold %v", p.LoThresh, p.HiThresh)
	}
	if p.HiNChan < 1 || p.LoNChan < 1 {
		return fmt.Errorf("channel run lengths must be at least 1 (hi=%d, lo=%d)", p.HiNChan, p.LoNChan)
	}
	return nil
}

// Builder thresholds cubes into signal masks.
type Builder struct {
	params Params
}

// NewBuilder validates p and returns a Builder.
func NewBuilder(p Params) (*Builder, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Builder{params: p}, nil
}

// Signal returns the strict signal mask of c given its noise cube.
func (b *Builder) Signal(c, noise *cube.Cube) (*cube.Mask, error) {
	if c.Shape != noise.Shape {
		return nil, fmt.Errorf("%w: cube %s vs noise %s", cube.ErrGridMismatch, c.Shape, noise.Shape)
	}
	hi := threshold(c, noise, b.params.HiThresh, b.params.HiNChan)
	if b.params.LoThresh >= b.params.HiThresh && b.params.LoNChan >= b.params.HiNChan {
		return hi, nil
	}
	lo := threshold(c, noise, b.params.LoThresh, b.params.LoNChan)
	return grow(hi, lo), nil
}

// Hybrid returns signal OR lowres.
func Hybrid(signal, lowres *cube.Mask) (*cube.Mask, error) {
	return signal.Or(lowres)
}

// threshold marks voxels above nsig*noise that belong to a spectral run of at
// least nchan consecutive such voxels.
func threshold(c, noise *cube.Cube, nsig float64, nchan int) *cube.Mask {
	m := cube.NewMask(c.Shape)
	for y := 0; y < c.Ny; y++ {
		for x := 0; x < c.Nx; x++ {
			run := 0
			for z := 0; z <= c.Nz; z++ {
				above := false
				if z < c.Nz {
					v, s := c.At(x, y, z), noise.At(x, y, z)
					above = !math.IsNaN(v) && !math.IsNaN(s) && v > nsig*s
				}
				if above {
					run++
					continue
				}
				if run >= nchan {
					for k := z - run; k < z; k++ {
						m.Bits[c.Index(x, y, k)] = true
					}
				}
				run = 0
			}
		}
	}
	return m
}

// grow extends seed into face-connected voxels of allowed. Seeds outside
// allowed are kept.
func grow(seed, allowed *cube.Mask) *cube.Mask {
	out := cube.NewMask(seed.Shape)
	queue := make([]int, 0, seed.Count())
	for i, b := range seed.Bits {
		if b {
			out.Bits[i] = true
			queue = append(queue, i)
		}
	}
	s := seed.Shape
	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		x := i % s.Nx
		y := (i / s.Nx) % s.Ny
		z := i / s.Pixels()
		for _, d := range [6][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}} {
			xx, yy, zz := x+d[0], y+d[1], z+d[2]
			if xx < 0 || yy < 0 || zz < 0 || xx >= s.Nx || yy >= s.Ny || zz >= s.Nz {
				continue
			}
			j := s.Index(xx, yy, zz)
			if allowed.Bits[j] && !out.Bits[j] {
				out.Bits[j] = true
				queue = append(queue, j)
			}
		}
	}
	return out
}
