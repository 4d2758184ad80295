// Package noise estimates the local noise level of a spectral cube.
package noise

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/vk/cubeproducts/internal/cube"
	"gonum.org/v1/gonum/stat"
)

// madToSigma converts a median absolute deviation into a Gaussian sigma.
const madToSigma = 1.4826

// Estimator produces a noise cube with the same shape and coordinates as its
// input.
type Estimator interface {
	Estimate(ctx context.Context, c *cube.Cube) (*cube.Cube, error)
}

// Params tunes the MAD estimator.
type Params struct {
	// ClipSigma excludes |value| >= ClipSigma*sigma from the next iteration.
	ClipSigma float64
	// Iterations caps the number of clipping passes.
	Iterations int
	// Tolerance stops iterating once sigma changes by less than this fraction.
	Tolerance float64
	// SpatialBox is the side of the median filter applied to the noise map.
	// Values below 2 disable smoothing.
	SpatialBox int
}

// DefaultParams returns the estimator settings used when none are configured.
func DefaultParams() Params {
	return Params{ClipSigma: 3, Iterations: 10, Tolerance: 0.02, SpatialBox: 0}
}

// MAD estimates one sigma per spectrum from the zero-centred median absolute
// deviation, iteratively excluding bright channels, and broadcasts it along
// the spectral axis.
type MAD struct {
	Params Params
}

// NewMAD returns a MAD estimator.
func NewMAD(p Params) *MAD {
	return &MAD{Params: p}
}

// Estimate implements Estimator.
func (m *MAD) Estimate(ctx context.Context, c *cube.Cube) (*cube.Cube, error) {
	if c.Nz == 0 {
		return nil, fmt.Errorf("noise: cube has no channels")
	}
	sigma := make([]float64, c.Pixels())
	spectrum := make([]float64, 0, c.Nz)
	for y := 0; y < c.Ny; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < c.Nx; x++ {
			spectrum = spectrum[:0]
			for z := 0; z < c.Nz; z++ {
				v := c.At(x, y, z)
				if !math.IsNaN(v) && !math.IsInf(v, 0) {
					spectrum = append(spectrum, v)
				}
			}
			sigma[x+c.Nx*y] = m.spectrumSigma(spectrum)
		}
	}

	if m.Params.SpatialBox > 1 {
		sigma = medianFilter(sigma, c.Nx, c.Ny, m.Params.SpatialBox)
	}

	out := cube.New(c.Shape, c.Header, c.WCS)
	for z := 0; z < c.Nz; z++ {
		copy(out.Data[z*c.Pixels():(z+1)*c.Pixels()], sigma)
	}
	return out, nil
}

func (m *MAD) spectrumSigma(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	abs := make([]float64, len(values))
	for i, v := range values {
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)
	sigma := madToSigma * stat.Quantile(0.5, stat.Empirical, abs, nil)

	for iter := 1; iter < m.Params.Iterations && sigma > 0; iter++ {
		limit := m.Params.ClipSigma * sigma
		n := sort.SearchFloat64s(abs, limit)
		if n == 0 {
			break
		}
		next := madToSigma * stat.Quantile(0.5, stat.Empirical, abs[:n], nil)
		change := math.Abs(next-sigma) / sigma
		sigma = next
		if change < m.Params.Tolerance {
			break
		}
	}
	return sigma
}

// medianFilter smooths a 2-D map with a box median, ignoring NaN.
func medianFilter(in []float64, nx, ny, box int) []float64 {
	half := box / 2
	out := make([]float64, len(in))
	window := make([]float64, 0, box*box)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			window = window[:0]
			for dy := -half; dy <= half; dy++ {
				for dx := -half; dx <= half; dx++ {
					xx, yy := x+dx, y+dy
					if xx < 0 || yy < 0 || xx >= nx || yy >= ny {
						continue
					}
					if v := in[xx+nx*yy]; !math.IsNaN(v) {
						window = append(window, v)
					}
				}
			}
			if len(window) == 0 {
				out[x+nx*y] = math.NaN()
				continue
			}
			sort.Float64s(window)
			out[x+nx*y] = stat.Quantile(0.5, stat.Empirical, window, nil)
		}
	}
	return out
}

// Constant reports the same sigma for every voxel.
type Constant struct {
	Sigma float64
}

// Estimate implements Estimator.
func (k Constant) Estimate(_ context.Context, c *cube.Cube) (*cube.Cube, error) {
	if !(k.Sigma > 0) {
		return nil, fmt.Errorf("noise: constant sigma must be positive, got %v", k.Sigma)
	}
	out := cube.New(c.Shape, c.Header, c.WCS)
	for i := range out.Data {
		out.Data[i] = k.Sigma
	}
	return out, nil
}
