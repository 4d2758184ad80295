package filenames

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cubeproducts/internal/catalog"
	"github.com/vk/cubeproducts/internal/config"
	"github.com/vk/cubeproducts/internal/diag"
)

type fixture struct {
	root     string
	resolver *Resolver
	sink     *diag.Sink
}

func newFixture(t *testing.T, resolutions []float64, present ...string) *fixture {
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

	indir := filepath.Join(root, "derived", "T")
	require.NoError(t, os.MkdirAll(indir, 0o755))
	for _, tag := range present {
		name := catalog.CubeFilename("T", "X", "P", CubeExt+"_res"+tag)
		require.NoError(t, os.WriteFile(filepath.Join(indir, name), nil, 0o644))
	}

	sink := diag.NewSink(nil)
	return &fixture{root: root, resolver: NewResolver(catalog.New(m), sink), sink: sink}
}

func TestResolve_MissingArguments(t *testing.T) {
	f := newFixture(t, []float64{5}, "5")
	ctx := context.Background()

	for _, args := range [][3]string{{"", "X", "P"}, {"T", "", "P"}, {"T", "X", ""}} {
		_, err := f.resolver.Resolve(ctx, args[0], args[1], args[2], "")
		require.ErrorIs(t, err, ErrConfiguration, "args %v", args)
	}
}

func TestResolve_EntriesAndNames(t *testing.T) {
	f := newFixture(t, []float64{5}, "5")

	table, err := f.resolver.Resolve(context.Background(), "T", "X", "P", "")
	require.NoError(t, err)

	outdir := filepath.Join(f.root, "products", "T")
	assert.DirExists(t, outdir)
	assert.Equal(t, outdir, table.OutDir)

	e, ok := table.Lookup("5")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(f.root, "derived", "T", "T_X_P_pbcorr_trimmed_k_res5.fits"), e.Cube)
	assert.Equal(t, filepath.Join(outdir, "T_X_P_hybridmask_res5.fits"), e.HybridMask)
	assert.Equal(t, filepath.Join(outdir, "T_X_P_signalmask_res5.fits"), e.SignalMask)
	assert.Equal(t, filepath.Join(outdir, "T_X_P_broad_res5.fits"), e.Broad)
	assert.Equal(t, filepath.Join(outdir, "T_X_P_strict_res5.fits"), e.Strict)
	assert.Equal(t, "5", table.LowResTag)
}

func TestResolve_MissingResolutionIsSkippedWithWarning(t *testing.T) {
	f := newFixture(t, []float64{5, 10, 20}, "5", "20")

	table, err := f.resolver.Resolve(context.Background(), "T", "X", "P", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"5", "20"}, table.Order)
	_, ok := table.Lookup("10")
	assert.False(t, ok)

	warnings := f.sink.Filter(diag.Warn)
	require.Len(t, warnings, 1)
	assert.Equal(t, "10", warnings[0].Scope.ResTag)
	assert.Contains(t, warnings[0].Message, "10.00 arcsec")
}

func TestResolve_LowResSelection(t *testing.T) {
	f := newFixture(t, []float64{5, 10, 20}, "5", "10", "20")
	ctx := context.Background()

	tests := []struct {
		override string
		want     string
	}{
		{override: "", want: "20"},
		{override: "10", want: "10"},
		{override: "10p72", want: "20"},
	}
	for _, tc := range tests {
		table, err := f.resolver.Resolve(ctx, "T", "X", "P", tc.override)
		require.NoError(t, err)
		assert.Equal(t, tc.want, table.LowResTag, "override %q", tc.override)
	}
}

func TestResolve_NothingPresent(t *testing.T) {
	f := newFixture(t, []float64{5, 10})

	table, err := f.resolver.Resolve(context.Background(), "T", "X", "P", "5")
	require.NoError(t, err)
	assert.True(t, table.Empty())
	assert.Empty(t, table.LowResTag)
	assert.Equal(t, 2, f.sink.Count(diag.Warn))
}

func TestResolve_UnknownConfig(t *testing.T) {
	f := newFixture(t, []float64{5}, "5")
	_, err := f.resolver.Resolve(context.Background(), "T", "Y", "P", "")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestPlan_DoesNotCreateOutputDirectory(t *testing.T) {
	f := newFixture(t, []float64{5}, "5")

	table, err := f.resolver.Plan(context.Background(), "T", "X", "P", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, table.Order)
	assert.NoDirExists(t, filepath.Join(f.root, "products", "T"))
}
