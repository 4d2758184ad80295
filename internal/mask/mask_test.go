package mask

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cubeproducts/internal/cube"
	"github.com/vk/cubeproducts/internal/fits"
	"github.com/vk/cubeproducts/internal/wcs"
)

func uniform(shape cube.Shape, v float64) *cube.Cube {
	c := cube.New(shape, nil, nil)
	for i := range c.Data {
		c.Data[i] = v
	}
	return c
}

// brightBlock returns a zero cube with a 3x3x3 block of value v starting at (x0, y0, z0).
func brightBlock(shape cube.Shape, x0, y0, z0 int, v float64) *cube.Cube {
	c := uniform(shape, 0)
	for z := z0; z < z0+3; z++ {
		for y := y0; y < y0+3; y++ {
			for x := x0; x < x0+3; x++ {
				c.Set(x, y, z, v)
			}
		}
	}
	return c
}

func TestSignalMaskSelectsBrightBlockOnly(t *testing.T) {
	shape := cube.Shape{Nx: 8, Ny: 8, Nz: 10}
	c := brightBlock(shape, 2, 3, 4, 10)
	b, err := NewBuilder(DefaultParams())
	require.NoError(t, err)

	m, err := b.Signal(c, uniform(shape, 1))
	require.NoError(t, err)
	assert.Equal(t, shape, m.Shape)
	assert.Len(t, m.Bits, shape.Size())
	assert.Equal(t, 27, m.Count())
	for z := 0; z < shape.Nz; z++ {
		for y := 0; y < shape.Ny; y++ {
			for x := 0; x < shape.Nx; x++ {
				inside := x >= 2 && x < 5 && y >= 3 && y < 6 && z >= 4 && z < 7
				assert.Equal(t, inside, m.At(x, y, z), "voxel (%d,%d,%d)", x, y, z)
			}
		}
	}
}

func TestSignalMaskRequiresConsecutiveChannels(t *testing.T) {
	shape := cube.Shape{Nx: 1, Ny: 1, Nz: 6}
	c := uniform(shape, 0)
	c.Set(0, 0, 1, 10)
	c.Set(0, 0, 4, 10)
	c.Set(0, 0, 5, 10)
	b, err := NewBuilder(DefaultParams())
	require.NoError(t, err)

	m, err := b.Signal(c, uniform(shape, 1))
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false, false, true, true}, m.Bits)
}

func TestSignalMaskGrowsIntoLowThresholdRegion(t *testing.T) {
	shape := cube.Shape{Nx: 4, Ny: 1, Nz: 2}
	c := uniform(shape, 0)
	for z := 0; z < 2; z++ {
		c.Set(0, 0, z, 10)
		c.Set(1, 0, z, 3)
		c.Set(3, 0, z, 3) // above lo but not connected
	}
	b, err := NewBuilder(Params{HiThresh: 5, HiNChan: 2, LoThresh: 2, LoNChan: 2})
	require.NoError(t, err)

	m, err := b.Signal(c, uniform(shape, 1))
	require.NoError(t, err)
	assert.True(t, m.At(0, 0, 0))
	assert.True(t, m.At(1, 0, 1))
	assert.False(t, m.At(2, 0, 0))
	assert.False(t, m.At(3, 0, 0))
}

func TestSignalMaskIsDeterministic(t *testing.T) {
	shape := cube.Shape{Nx: 6, Ny: 6, Nz: 6}
	c := brightBlock(shape, 1, 1, 1, 7)
	b, err := NewBuilder(DefaultParams())
	require.NoError(t, err)
	a1, err := b.Signal(c, uniform(shape, 1))
	require.NoError(t, err)
	a2, err := b.Signal(c, uniform(shape, 1))
	require.NoError(t, err)
	assert.True(t, a1.Equal(a2))
}

func TestHybridIsUnionOfSignalAndLowRes(t *testing.T) {
	shape := cube.Shape{Nx: 8, Ny: 8, Nz: 10}
	b, err := NewBuilder(DefaultParams())
	require.NoError(t, err)
	signal, err := b.Signal(brightBlock(shape, 0, 0, 0, 10), uniform(shape, 1))
	require.NoError(t, err)
	lowres, err := b.Signal(brightBlock(shape, 4, 4, 5, 10), uniform(shape, 1))
	require.NoError(t, err)

	hybrid, err := Hybrid(signal, lowres)
	require.NoError(t, err)
	for i := range hybrid.Bits {
		assert.Equal(t, signal.Bits[i] || lowres.Bits[i], hybrid.Bits[i], "voxel %d", i)
	}
	assert.Equal(t, 54, hybrid.Count())

	_, err = Hybrid(signal, cube.NewMask(cube.Shape{Nx: 8, Ny: 8, Nz: 9}))
	require.ErrorIs(t, err, cube.ErrGridMismatch)
}

func TestNewBuilderValidates(t *testing.T) {
	_, err := NewBuilder(Params{HiThresh: 5, HiNChan: 0, LoThresh: 5, LoNChan: 1})
	require.Error(t, err)
	_, err = NewBuilder(Params{HiThresh: 2, HiNChan: 1, LoThresh: 3, LoNChan: 1})
	require.Error(t, err)
}

func testWCS(t *testing.T) *wcs.WCS {
	t.Helper()
	h := fits.NewHeader()
	h.Set("CTYPE1", "RA---SIN", "")
	h.Set("CTYPE2", "DEC--SIN", "")
	h.Set("CTYPE3", "VRAD", "")
	h.Set("CDELT3", 2500.0, "")
	w, err := wcs.FromHeader(h, 3)
	require.NoError(t, err)
	return w
}

func TestWriteProducesIntegerMaskWithProvenance(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "t_signalmask_res5.fits")
	require.NoError(t, os.WriteFile(out, []byte("old content"), 0o644))

	m := cube.NewMask(cube.Shape{Nx: 2, Ny: 2, Nz: 2})
	m.Bits[0], m.Bits[5] = true, true
	src := fits.NewHeader()
	src.Set("BMAJ", 0.0015, "")
	src.Set("BMIN", 0.0012, "")
	src.Set("BPA", 33.0, "")
	src.Set("OBSERVER", "someone", "")

	err := Write(ctx, m, testWCS(t), src, []string{"  first line ", "second line"}, out)
	require.NoError(t, err)

	img, err := fits.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, img.Axes)
	assert.Equal(t, m.Ints(), img.Data)
	bitpix, _ := img.Header.Int("BITPIX")
	assert.Equal(t, 16, bitpix)
	bmaj, ok := img.Header.Float("BMAJ")
	require.True(t, ok)
	assert.Equal(t, 0.0015, bmaj)
	assert.True(t, img.Header.Has("BPA"))
	assert.False(t, img.Header.Has("OBSERVER"))
	ctype, _ := img.Header.String("CTYPE3")
	assert.Equal(t, "VRAD", ctype)
	assert.Equal(t, []string{"", "first line", "second line", ""}, img.Header.Comments())
}

func TestWriteIsNoOpWithoutInputs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	out := filepath.Join(dir, "mask.fits")
	m := cube.NewMask(cube.Shape{Nx: 1, Ny: 1, Nz: 1})

	require.NoError(t, Write(ctx, nil, testWCS(t), nil, nil, out))
	require.NoError(t, Write(ctx, m, nil, nil, nil, out))
	require.NoError(t, Write(ctx, m, testWCS(t), nil, nil, ""))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
