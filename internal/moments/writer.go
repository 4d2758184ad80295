package moments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/vk/cubeproducts/internal/ctxlog"
	"github.com/vk/cubeproducts/internal/cube"
	"github.com/vk/cubeproducts/internal/fits"
	"github.com/vk/cubeproducts/internal/fsutil"
)

// mapBitpix is the on-disk type of product maps.
const mapBitpix = -32

// Flags selects the product kinds to write. ErrorMaps applies to every
// enabled kind.
type Flags struct {
	Moment0   bool
	Moment1   bool
	Moment2   bool
	EW        bool
	TMax      bool
	VMax      bool
	VQuad     bool
	ErrorMaps bool
}

// DefaultFlags enables every kind and the error maps.
func DefaultFlags() Flags {
	return Flags{Moment0: true, Moment1: true, Moment2: true, EW: true, TMax: true, VMax: true, VQuad: true, ErrorMaps: true}
}

// Enabled reports whether k is selected.
func (f Flags) Enabled(k Kind) bool {
	switch k {
	case Moment0:
		return f.Moment0
	case Moment1:
		return f.Moment1
	case Moment2:
		return f.Moment2
	case EW:
		return f.EW
	case TMax:
		return f.TMax
	case VMax:
		return f.VMax
	case VQuad:
		return f.VQuad
	}
	return false
}

// Kinds returns the enabled kinds in output order.
func (f Flags) Kinds() []Kind {
	var out []Kind
	for _, k := range Kinds {
		if f.Enabled(k) {
			out = append(out, k)
		}
	}
	return out
}

// Result is the outcome of one product kind.
type Result struct {
	Kind    Kind
	Outfile string
	Errfile string // empty when error maps are disabled
	Err     error
}

// Paths returns the value and error file names of k for basename. The
// error path is empty when errorMaps is false.
func Paths(basename string, k Kind, errorMaps bool) (outfile, errfile string) {
	base := strings.TrimSuffix(basename, ".fits")
	outfile = base + k.Suffix() + ".fits"
	if errorMaps {
		errfile = base + k.ErrorSuffix() + ".fits"
	}
	return outfile, errfile
}

// Write computes every enabled kind from the masked cube and noise and
// writes the maps next to basename. Stale outputs of the enabled kinds are
// deleted before anything is computed. Each kind succeeds or fails on its
// own; the returned error joins the failures.
func Write(ctx context.Context, c, rms *cube.Masked, basename string, flags Flags) ([]Result, error) {
	logger := ctxlog.FromContext(ctx)

	results := make([]Result, 0, len(Kinds))
	for _, k := range flags.Kinds() {
		out, errf := Paths(basename, k, flags.ErrorMaps)
		res := Result{Kind: k, Outfile: out, Errfile: errf}
		for _, path := range []string{out, errf} {
			if path == "" {
				continue
			}
			removed, err := fsutil.RemoveIfExists(path)
			if err != nil {
				res.Err = fmt.Errorf("failed to delete old file %s: %w", path, err)
				break
			}
			if removed {
				logger.Info("Deleting old file.", "path", path)
			}
		}
		results = append(results, res)
	}

	var errs []error
	for i := range results {
		res := &results[i]
		if res.Err == nil {
			logger.Info("Producing product.", "outfile", res.Outfile, "kind", res.Kind.String())
			res.Err = writeKind(ctx, c, rms, res)
		}
		if res.Err != nil {
			logger.Error("Product failed.", "kind", res.Kind.String(), "error", res.Err)
			errs = append(errs, fmt.Errorf("%s: %w", res.Kind, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

func writeKind(ctx context.Context, c, rms *cube.Masked, res *Result) error {
	m, err := res.Kind.Compute(c, rms)
	if err != nil {
		return err
	}
	if err := writeMap(ctx, c.Cube, m.Value, m, res.Outfile); err != nil {
		return err
	}
	if res.Errfile != "" {
		if err := writeMap(ctx, c.Cube, m.Error, m, res.Errfile); err != nil {
			return err
		}
	}
	return nil
}

func writeMap(ctx context.Context, src *cube.Cube, data []float64, m *Map, path string) error {
	hdr := src.WCS.Celestial().ToHeader()
	if src.Header != nil {
		for _, key := range []string{"BMAJ", "BMIN", "BPA", "OBJECT", "TELESCOP"} {
			if card, ok := src.Header.Get(key); ok {
				hdr.Set(card.Key, card.Value, card.Comment)
			}
		}
	}
	hdr.Set("BUNIT", m.Unit, "")

	img := &fits.Image{Header: hdr, Axes: []int{m.Nx, m.Ny}, Data: data}
	if err := fits.WriteFile(path, img, mapBitpix); err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil {
		ctxlog.FromContext(ctx).Debug("Wrote map.", "path", path, "size", humanize.Bytes(uint64(info.Size())))
	}
	return nil
}
