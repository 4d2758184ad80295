package handler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/cubeproducts/internal/catalog"
	"github.com/vk/cubeproducts/internal/config"
	"github.com/vk/cubeproducts/internal/cube"
	"github.com/vk/cubeproducts/internal/diag"
	"github.com/vk/cubeproducts/internal/filenames"
	"github.com/vk/cubeproducts/internal/fits"
	"github.com/vk/cubeproducts/internal/notify"
)

var testShape = cube.Shape{Nx: 8, Ny: 8, Nz: 8}

// block is a cube of side 3 with its lowest corner at (X, Y, Z).
type block struct {
	X, Y, Z int
	Value   float64
}

func (b block) contains(x, y, z int) bool {
	return x >= b.X && x < b.X+3 && y >= b.Y && y < b.Y+3 && z >= b.Z && z < b.Z+3
}

type fixture struct {
	root  string
	model *config.Model
	sink  *diag.Sink
	rec   *recorder
}

func newFixture(t *testing.T, resolutions ...float64) *fixture {
	t.Helper()
	root := t.TempDir()
	m := config.Default()
	m.Paths = config.Paths{
		PostprocessRoot: filepath.Join(root, "derived"),
		ProductRoot:     filepath.Join(root, "products"),
	}
	m.Configs = []*config.ArrayConfig{{Name: "X", Kind: config.KindInterf, Resolutions: resolutions}}
	m.Targets = []*config.Target{{Name: "T"}}
	m.Products = []*config.Product{{Name: "P", Kind: config.KindLine}}
	m.Noise = config.Noise{Method: config.NoiseConstant, Sigma: 1.0}
	require.NoError(t, m.Validate())
	return &fixture{root: root, model: m, sink: diag.NewSink(nil), rec: &recorder{}}
}

func (f *fixture) handler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewFromModel(f.model, f.sink, f.rec, "run-test")
	require.NoError(t, err)
	return h
}

func (f *fixture) cubePath(tag string) string {
	name := catalog.CubeFilename("T", "X", "P", filenames.CubeExt+"_res"+tag)
	return filepath.Join(f.root, "derived", "T", name)
}

func (f *fixture) outPath(name string) string {
	return filepath.Join(f.root, "products", "T", name)
}

func (f *fixture) writeCube(t *testing.T, tag string, shape cube.Shape, blocks ...block) {
	t.Helper()
	h := fits.NewHeader()
	h.Set("CTYPE1", "RA---SIN", "")
	h.Set("CTYPE2", "DEC--SIN", "")
	h.Set("CTYPE3", "VRAD", "")
	h.Set("CUNIT3", "m/s", "")
	h.Set("CRVAL3", 0.0, "")
	h.Set("CDELT3", 1000.0, "")
	h.Set("CRPIX3", 1.0, "")
	h.Set("BUNIT", "K", "")
	h.Set("BMAJ", 0.001, "")
	h.Set("BMIN", 0.001, "")
	h.Set("BPA", 0.0, "")

	data := make([]float64, shape.Size())
	for z := 0; z < shape.Nz; z++ {
		for y := 0; y < shape.Ny; y++ {
			for x := 0; x < shape.Nx; x++ {
				for _, b := range blocks {
					if b.contains(x, y, z) {
						data[shape.Index(x, y, z)] = b.Value
					}
				}
			}
		}
	}

	path := f.cubePath(tag)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := &fits.Image{Header: h, Axes: []int{shape.Nx, shape.Ny, shape.Nz}, Data: data}
	require.NoError(t, fits.WriteFile(path, img, -32))
}

func readImage(t *testing.T, path string) *fits.Image {
	t.Helper()
	img, err := fits.ReadFile(path)
	require.NoError(t, err)
	return img
}

// maskSet returns the indices of the set voxels of a mask file.
func maskSet(t *testing.T, path string) map[int]bool {
	t.Helper()
	out := make(map[int]bool)
	for i, v := range readImage(t, path).Data {
		if v != 0 {
			out[i] = true
		}
	}
	return out
}

func blockSet(shape cube.Shape, blocks ...block) map[int]bool {
	out := make(map[int]bool)
	for z := 0; z < shape.Nz; z++ {
		for y := 0; y < shape.Ny; y++ {
			for x := 0; x < shape.Nx; x++ {
				for _, b := range blocks {
					if b.contains(x, y, z) {
						out[shape.Index(x, y, z)] = true
					}
				}
			}
		}
	}
	return out
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
	closed bool
}

func (r *recorder) Notify(_ context.Context, e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}
