package yamlcfg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cubeproducts/internal/config"
)

func TestHandles(t *testing.T) {
	assert.True(t, Handles("pipeline.yaml"))
	assert.True(t, Handles("PIPELINE.YML"))
	assert.False(t, Handles("pipeline.hcl"))
	assert.False(t, Handles("configs"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
paths:
  postprocess_root: /data/derived
  product_root: /data/products
configs:
  - name: 12m+7m
    resolutions: [5, 10.72]
targets:
  - name: ngc0628
    configs: [12m+7m]
products:
  - name: co21
moments:
  error_maps: false
---
masking:
  lo_thresh: 2
  lo_nchan: 3
selection:
  no_cont: true
`), 0o644))

	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "/data/products", model.Paths.ProductRoot)
	require.Len(t, model.Configs, 1)
	assert.Equal(t, config.KindInterf, model.Configs[0].Kind)
	assert.Equal(t, []float64{5, 10.72}, model.Configs[0].Resolutions)
	require.Len(t, model.Products, 1)
	assert.Equal(t, config.KindLine, model.Products[0].Kind)
	assert.False(t, model.Moments.ErrorMaps)
	assert.True(t, model.Moments.Moment0)
	assert.Equal(t, 2.0, model.Masking.LoThresh)
	assert.Equal(t, 3, model.Masking.LoNChan)
	assert.Equal(t, 5.0, model.Masking.HiThresh)
	assert.True(t, model.Selection.NoCont)

	require.NoError(t, model.Validate())
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("masking:\n  hi_sigma: 3\n"), 0o644))

	_, err := NewLoader().Load(context.Background(), path)
	require.ErrorContains(t, err, "failed to decode")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
