package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cubeproducts/internal/fits"
	"github.com/vk/cubeproducts/internal/hcl"
	"github.com/vk/cubeproducts/internal/yamlcfg"
)

// writePipeline lays out one target with a single 5 arcsec cube holding a
// bright 2x2x3 block, and returns the HCL config path.
func writePipeline(t *testing.T, extra string) (root, configPath string) {
	t.Helper()
	root = t.TempDir()

	h := fits.NewHeader()
	h.Set("CTYPE1", "RA---SIN", "")
	h.Set("CTYPE2", "DEC--SIN", "")
	h.Set("CTYPE3", "VRAD", "")
	h.Set("CUNIT3", "km/s", "")
	h.Set("CDELT3", 2.0, "")
	h.Set("BUNIT", "K", "")
	data := make([]float64, 4*4*6)
	for z := 1; z < 4; z++ {
		for y := 1; y < 3; y++ {
			for x := 1; x < 3; x++ {
				data[x+4*(y+4*z)] = 20
			}
		}
	}
	cubePath := filepath.Join(root, "derived", "ngc0628", "ngc0628_12m_co21_pbcorr_trimmed_k_res5.fits")
	require.NoError(t, os.MkdirAll(filepath.Dir(cubePath), 0o755))
	require.NoError(t, fits.WriteFile(cubePath, &fits.Image{Header: h, Axes: []int{4, 4, 6}, Data: data}, -32))

	configPath = filepath.Join(root, "pipeline.hcl")
	content := `
paths {
  postprocess_root = "` + filepath.ToSlash(filepath.Join(root, "derived")) + `"
  product_root     = "` + filepath.ToSlash(filepath.Join(root, "products")) + `"
}

config "12m" {
  resolutions = [5]
}

target "ngc0628" {}

product "co21" {}

noise {
  method = "constant"
  sigma  = 1
}
` + extra
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return root, configPath
}

func TestLoaderFor(t *testing.T) {
	l, err := LoaderFor([]string{"a.hcl", "dir"})
	require.NoError(t, err)
	assert.IsType(t, &hcl.Loader{}, l)

	l, err = LoaderFor([]string{"a.yaml", "b.yml"})
	require.NoError(t, err)
	assert.IsType(t, &yamlcfg.Loader{}, l)

	_, err = LoaderFor([]string{"a.yaml", "b.hcl"})
	require.Error(t, err)
}

func TestNewConfig(t *testing.T) {
	_, err := NewConfig(Config{})
	require.Error(t, err)

	_, err = NewConfig(Config{ConfigPaths: []string{"x.hcl"}, Workers: -1})
	require.Error(t, err)

	cfg, err := NewConfig(Config{ConfigPaths: []string{"x.hcl"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"x.hcl"}, cfg.ConfigPaths)
}

func TestNewApp_InvalidConfiguration(t *testing.T) {
	_, configPath := writePipeline(t, `
masking {
  hi_nchan = 0
}
`)
	_, err := NewApp(&bytes.Buffer{}, &Config{ConfigPaths: []string{configPath}}, hcl.NewLoader())
	require.ErrorIs(t, err, ErrStartup)
	assert.Contains(t, err.Error(), "masking.hi_nchan")
}

func TestNewApp_AppliesOverrides(t *testing.T) {
	_, configPath := writePipeline(t, "")
	a, _ := SetupAppTest(t, &Config{
		ConfigPaths: []string{configPath},
		Workers:     3,
		DryRun:      true,
		Targets:     []string{"ngc0628"},
	})

	m := a.Model()
	assert.Equal(t, 3, m.Execution.Workers)
	assert.True(t, m.Execution.DryRun)
	assert.Equal(t, []string{"ngc0628"}, m.Selection.OnlyTargets)
	assert.NotEmpty(t, a.RunID())
}

func TestRun_WritesProducts(t *testing.T) {
	root, configPath := writePipeline(t, "")
	a, logs := SetupAppTest(t, &Config{ConfigPaths: []string{configPath}, LogFormat: "json"})

	require.NoError(t, a.Run(context.Background()))

	out := filepath.Join(root, "products", "ngc0628")
	assert.FileExists(t, filepath.Join(out, "ngc0628_12m_co21_hybridmask_res5.fits"))
	assert.FileExists(t, filepath.Join(out, "ngc0628_12m_co21_signalmask_res5.fits"))
	assert.FileExists(t, filepath.Join(out, "ngc0628_12m_co21_broad_res5_mom0.fits"))
	assert.FileExists(t, filepath.Join(out, "ngc0628_12m_co21_strict_res5_emom2.fits"))

	mom0, err := fits.ReadFile(filepath.Join(out, "ngc0628_12m_co21_strict_res5_mom0.fits"))
	require.NoError(t, err)
	assert.InDelta(t, 120.0, mom0.Data[1+4*1], 1e-3)
	assert.Zero(t, mom0.Data[0])

	assert.Contains(t, logs.String(), `"run_id":"`+a.RunID()+`"`)
	assert.Contains(t, logs.String(), "Product generation finished.")
}

func TestRun_ReportsFailedTriples(t *testing.T) {
	_, configPath := writePipeline(t, `
product "co10" {}
`)
	a, logs := SetupAppTest(t, &Config{ConfigPaths: []string{configPath}})

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ngc0628/co10/12m")
	assert.True(t, strings.Contains(logs.String(), "was not found"))
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	root, configPath := writePipeline(t, "")
	a, logs := SetupAppTest(t, &Config{ConfigPaths: []string{configPath}, DryRun: true})

	require.NoError(t, a.Run(context.Background()))
	assert.NoDirExists(t, filepath.Join(root, "products"))
	assert.Contains(t, logs.String(), "Would write.")
}

func TestRun_UnreachableMonitorIsNotFatal(t *testing.T) {
	_, configPath := writePipeline(t, `
notify {
  url     = "localhost-without-scheme"
  timeout = "100ms"
}
`)
	a, logs := SetupAppTest(t, &Config{ConfigPaths: []string{configPath}})

	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, logs.String(), "Progress notifications disabled.")
}

func TestHealthHandler(t *testing.T) {
	a := &App{logger: newLogger("debug", "text", &bytes.Buffer{})}
	rec := httptest.NewRecorder()
	a.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}
