// Package filenames derives, for one (target, config, product), the input
// cube and output mask/product paths of every resolution found on disk.
package filenames

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/cubeproducts/internal/catalog"
	"github.com/vk/cubeproducts/internal/ctxlog"
	"github.com/vk/cubeproducts/internal/diag"
	"github.com/vk/cubeproducts/internal/fsutil"
)

// ErrConfiguration is returned when a required argument is missing.
var ErrConfiguration = errors.New("configuration error")

// CubeExt is the extension of the primary-beam corrected, trimmed cube in
// Kelvin, without its resolution suffix.
const CubeExt = "pbcorr_trimmed_k"

// Catalog is the subset of catalog.Catalog the resolver needs.
type Catalog interface {
	Resolutions(config string) ([]float64, error)
	PostprocessDir(target string) string
	ProductDir(target string) string
}

// Entry holds the paths of one resolution.
type Entry struct {
	Res        float64
	Cube       string
	HybridMask string
	SignalMask string
	Broad      string
	Strict     string
}

// Table maps resolution tags to their paths. Only resolutions whose cube
// existed when the table was built are present.
type Table struct {
	Entries map[string]Entry
	// Order lists the tags of Entries finer first.
	Order []string
	// LowResTag is the low-resolution reference, empty when the table has
	// no entries.
	LowResTag string
	OutDir    string
}

// Empty reports whether no cube was found.
func (t *Table) Empty() bool {
	return len(t.Order) == 0
}

// Lookup returns the entry of a tag.
func (t *Table) Lookup(tag string) (Entry, bool) {
	e, ok := t.Entries[tag]
	return e, ok
}

// Resolver builds Tables. Missing cubes are reported to the sink.
type Resolver struct {
	cat  Catalog
	sink *diag.Sink
}

// NewResolver creates a Resolver.
func NewResolver(cat Catalog, sink *diag.Sink) *Resolver {
	if sink == nil {
		sink = diag.NewSink(nil)
	}
	return &Resolver{cat: cat, sink: sink}
}

// Resolve builds a fresh table. The output directory is created if needed.
// The low-resolution tag is lowresOverride when that resolution is present,
// otherwise the coarsest present resolution.
func (r *Resolver) Resolve(ctx context.Context, target, config, product, lowresOverride string) (*Table, error) {
	return r.resolve(ctx, target, config, product, lowresOverride, true)
}

// Plan is Resolve without touching the file system beyond existence checks.
func (r *Resolver) Plan(ctx context.Context, target, config, product, lowresOverride string) (*Table, error) {
	return r.resolve(ctx, target, config, product, lowresOverride, false)
}

func (r *Resolver) resolve(ctx context.Context, target, config, product, lowresOverride string, mkdir bool) (*Table, error) {
	switch {
	case target == "":
		return nil, fmt.Errorf("%w: need a target", ErrConfiguration)
	case product == "":
		return nil, fmt.Errorf("%w: need a product", ErrConfiguration)
	case config == "":
		return nil, fmt.Errorf("%w: need a config", ErrConfiguration)
	}
	logger := ctxlog.FromContext(ctx)
	scope := diag.Scope{Target: target, Product: product, Config: config}

	indir, err := filepath.Abs(r.cat.PostprocessDir(target))
	if err != nil {
		return nil, err
	}
	outdir, err := filepath.Abs(r.cat.ProductDir(target))
	if err != nil {
		return nil, err
	}
	logger.Debug("Resolving file names.", "indir", indir, "outdir", outdir)

	if mkdir {
		if err := os.MkdirAll(outdir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", outdir, err)
		}
	}

	resolutions, err := r.cat.Resolutions(config)
	if err != nil {
		return nil, fmt.Errorf("%w: no resolutions for target %s and config %s: %v", ErrConfiguration, target, config, err)
	}

	table := &Table{Entries: make(map[string]Entry), OutDir: outdir}
	coarsest := math.Inf(-1)
	for _, res := range resolutions {
		tag := catalog.Tag(res)
		ext := CubeExt + "_res" + tag
		cubeFile := catalog.CubeFilename(target, config, product, ext)
		cubePath := filepath.Join(indir, cubeFile)

		if !fsutil.FileExists(cubePath) {
			rs := scope
			rs.ResTag = tag
			r.sink.Warnf(ctx, rs, "Cube with tag %s at %.2f arcsec resolution was not found: %q", tag, res, cubePath)
			continue
		}

		image := strings.TrimSuffix(cubeFile, "_"+ext+".fits")
		out := func(kind string) string {
			return filepath.Join(outdir, image+"_"+kind+"_res"+tag+".fits")
		}
		table.Entries[tag] = Entry{
			Res:        res,
			Cube:       cubePath,
			HybridMask: out("hybridmask"),
			SignalMask: out("signalmask"),
			Broad:      out("broad"),
			Strict:     out("strict"),
		}
		table.Order = append(table.Order, tag)
		if res > coarsest {
			coarsest = res
			table.LowResTag = tag
		}
	}

	if _, ok := table.Entries[lowresOverride]; lowresOverride != "" && ok {
		table.LowResTag = lowresOverride
	} else if lowresOverride != "" && !table.Empty() {
		logger.Debug("Requested low-resolution tag not present, using the coarsest cube.",
			"requested", lowresOverride, "using", table.LowResTag)
	}
	return table, nil
}
