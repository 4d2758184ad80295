// Package catalog answers the bookkeeping questions of a run: which
// targets, products and configurations to process, which resolutions a
// configuration has, and where the cubes and products of a target live.
package catalog

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/vk/cubeproducts/internal/config"
	"github.com/vk/cubeproducts/internal/ctxlog"
)

// Triple is one unit of work of the processing loop.
type Triple struct {
	Target  string
	Product string
	Config  string
}

func (t Triple) String() string {
	return t.Target + "/" + t.Product + "/" + t.Config
}

// Catalog is a read-only view over a validated config.Model.
type Catalog struct {
	model *config.Model
}

// New returns a Catalog backed by m.
func New(m *config.Model) *Catalog {
	return &Catalog{model: m}
}

// Tag returns the canonical string of a resolution in arcseconds. Whole
// numbers print without a fraction and the decimal point becomes "p", so
// 5 is "5" and 10.72 is "10p72".
func Tag(res float64) string {
	if res == math.Trunc(res) && math.Abs(res) < 1e15 {
		return strconv.FormatInt(int64(res), 10)
	}
	return strings.ReplaceAll(strconv.FormatFloat(res, 'f', -1, 64), ".", "p")
}

// Resolutions returns the resolutions of a configuration, finer first.
func (c *Catalog) Resolutions(name string) ([]float64, error) {
	cfg, ok := c.model.Config(name)
	if !ok {
		return nil, fmt.Errorf("unknown config %q", name)
	}
	out := slices.Clone(cfg.Resolutions)
	slices.Sort(out)
	return slices.Compact(out), nil
}

// PostprocessDir is the directory holding the input cubes of a target.
func (c *Catalog) PostprocessDir(target string) string {
	return filepath.Join(c.model.Paths.PostprocessRoot, target)
}

// ProductDir is the directory receiving the masks and maps of a target.
func (c *Catalog) ProductDir(target string) string {
	return filepath.Join(c.model.Paths.ProductRoot, target)
}

// CubeFilename is the base name of a cube file.
func CubeFilename(target, config, product, ext string) string {
	name := target + "_" + config + "_" + product
	if ext != "" {
		name += "_" + ext
	}
	return name + ".fits"
}

// Triples enumerates targets × products × configs in declaration order,
// honouring the selection filters.
func (c *Catalog) Triples() []Triple {
	sel := c.model.Selection
	var out []Triple
	for _, t := range c.model.Targets {
		if !selected(t.Name, sel.OnlyTargets, sel.SkipTargets) {
			continue
		}
		for _, p := range c.model.Products {
			if !c.productSelected(p) {
				continue
			}
			for _, cfg := range c.targetConfigs(t) {
				if !c.configSelected(cfg) {
					continue
				}
				out = append(out, Triple{Target: t.Name, Product: p.Name, Config: cfg.Name})
			}
		}
	}
	return out
}

// Targets returns the selected target names.
func (c *Catalog) Targets() []string {
	sel := c.model.Selection
	var out []string
	for _, t := range c.model.Targets {
		if selected(t.Name, sel.OnlyTargets, sel.SkipTargets) {
			out = append(out, t.Name)
		}
	}
	return out
}

// Products returns the selected product names.
func (c *Catalog) Products() []string {
	var out []string
	for _, p := range c.model.Products {
		if c.productSelected(p) {
			out = append(out, p.Name)
		}
	}
	return out
}

// MakeMissingDirectories creates the product directory of every selected
// target.
func (c *Catalog) MakeMissingDirectories(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for _, t := range c.Targets() {
		dir := c.ProductDir(t)
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create product directory for %s: %w", t, err)
		}
		logger.Info("Created product directory.", "target", t, "path", dir)
	}
	return nil
}

func (c *Catalog) targetConfigs(t *config.Target) []*config.ArrayConfig {
	if len(t.Configs) == 0 {
		return c.model.Configs
	}
	var out []*config.ArrayConfig
	for _, name := range t.Configs {
		if cfg, ok := c.model.Config(name); ok {
			out = append(out, cfg)
		}
	}
	return out
}

func (c *Catalog) productSelected(p *config.Product) bool {
	sel := c.model.Selection
	if sel.NoCont && p.Kind == config.KindCont {
		return false
	}
	if sel.NoLine && p.Kind == config.KindLine {
		return false
	}
	return selected(p.Name, sel.OnlyProducts, sel.SkipProducts)
}

func (c *Catalog) configSelected(cfg *config.ArrayConfig) bool {
	sel := c.model.Selection
	if sel.NoInterf && cfg.Kind == config.KindInterf {
		return false
	}
	if sel.NoFeather && cfg.Kind == config.KindFeather {
		return false
	}
	return selected(cfg.Name, sel.OnlyConfigs, sel.SkipConfigs)
}

// selected applies an only list and a skip list. A name in both lists is
// kept.
func selected(name string, only, skip []string) bool {
	if len(only) > 0 {
		return slices.Contains(only, name)
	}
	return !slices.Contains(skip, name)
}
