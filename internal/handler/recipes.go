package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/cubeproducts/internal/ctxlog"
	"github.com/vk/cubeproducts/internal/cube"
	"github.com/vk/cubeproducts/internal/diag"
	"github.com/vk/cubeproducts/internal/filenames"
	"github.com/vk/cubeproducts/internal/mask"
	"github.com/vk/cubeproducts/internal/moments"
	"golang.org/x/sync/errgroup"
)

// ResolutionResult is the outcome of one resolution of a triple.
type ResolutionResult struct {
	Tag        string
	HybridMask string
	SignalMask string
	Broad      []moments.Result
	Strict     []moments.Result
	Err        error
}

// Outputs counts the files written for this resolution.
func (r ResolutionResult) Outputs() int {
	n := 0
	if r.HybridMask != "" {
		n++
	}
	if r.SignalMask != "" {
		n++
	}
	for _, res := range append(append([]moments.Result(nil), r.Broad...), r.Strict...) {
		if res.Err != nil {
			continue
		}
		n++
		if res.Errfile != "" {
			n++
		}
	}
	return n
}

// BuildLowResMask builds the signal mask of the low-resolution reference
// cube of a triple and returns it with the tag of the cube it came from.
// override selects the reference when that resolution is present.
func (h *Handler) BuildLowResMask(ctx context.Context, target, product, config, override string) (*cube.Mask, string, error) {
	if err := checkArgs(target, product, config); err != nil {
		return nil, "", err
	}
	table, err := h.resolver.Resolve(ctx, target, config, product, override)
	if err != nil {
		return nil, "", err
	}
	if table.Empty() {
		return nil, "", fmt.Errorf("%w: target %s, product %s, config %s", ErrNoResolutions, target, product, config)
	}

	tag := table.LowResTag
	entry, _ := table.Lookup(tag)
	logger := ctxlog.FromContext(ctx).With("target", target, "product", product, "config", config)
	logger.Info("Building low-resolution mask.", "res_tag", tag, "cube", entry.Cube)

	c, err := cube.Read(entry.Cube)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read low-resolution cube: %w", err)
	}
	rms, err := h.estimator.Estimate(ctx, c)
	if err != nil {
		return nil, "", fmt.Errorf("failed to estimate low-resolution noise: %w", err)
	}
	m, err := h.builder.Signal(c, rms)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build low-resolution mask: %w", err)
	}
	logger.Debug("Low-resolution mask built.", "res_tag", tag, "voxels", m.Count())
	return m, tag, nil
}

// BuildAllMasksAndProducts builds and writes the signal and hybrid masks of
// every resolution present on disk, and the broad and strict products. When
// lowMask or lowTag is missing the low-resolution recipe runs first. One
// failing resolution does not stop the others; their errors are joined.
func (h *Handler) BuildAllMasksAndProducts(ctx context.Context, target, product, config string, lowMask *cube.Mask, lowTag string) ([]ResolutionResult, error) {
	if err := checkArgs(target, product, config); err != nil {
		return nil, err
	}
	if lowMask == nil || lowTag == "" {
		var err error
		lowMask, lowTag, err = h.BuildLowResMask(ctx, target, product, config, h.opts.LowResTag)
		if err != nil {
			return nil, err
		}
	}

	table, err := h.resolver.Resolve(ctx, target, config, product, "")
	if err != nil {
		return nil, err
	}
	if table.Empty() {
		return nil, fmt.Errorf("%w: target %s, product %s, config %s", ErrNoResolutions, target, product, config)
	}

	scope := diag.Scope{Target: target, Product: product, Config: config}
	results := make([]ResolutionResult, len(table.Order))

	var mu sync.Mutex
	var errs []error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.opts.Workers)
	for i, tag := range table.Order {
		entry, _ := table.Lookup(tag)
		g.Go(func() error {
			rs := scope
			rs.ResTag = tag
			res := h.buildResolution(ctxlog.With(gctx, "target", target, "product", product, "config", config, "res_tag", tag), entry, tag, lowMask, lowTag)
			results[i] = res
			if res.Err != nil {
				h.sink.Errorf(gctx, rs, res.Err, "Resolution %s failed.", tag)
				mu.Lock()
				errs = append(errs, fmt.Errorf("res %s: %w", tag, res.Err))
				mu.Unlock()
			}
			// Failures stay local so the group never cancels its siblings.
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return results, errors.Join(errs...)
}

func (h *Handler) buildResolution(ctx context.Context, entry filenames.Entry, tag string, lowMask *cube.Mask, lowTag string) ResolutionResult {
	res := ResolutionResult{Tag: tag}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	logger := ctxlog.FromContext(ctx)
	logger.Info("Building masks.", "cube", entry.Cube)

	c, err := cube.Read(entry.Cube)
	if err != nil {
		res.Err = fmt.Errorf("failed to read cube: %w", err)
		return res
	}
	rms, err := h.estimator.Estimate(ctx, c)
	if err != nil {
		res.Err = fmt.Errorf("failed to estimate noise: %w", err)
		return res
	}
	signal, err := h.builder.Signal(c, rms)
	if err != nil {
		res.Err = fmt.Errorf("failed to build signal mask: %w", err)
		return res
	}
	hybrid, err := mask.Hybrid(signal, lowMask)
	if err != nil {
		res.Err = fmt.Errorf("failed to combine with the %s low-resolution mask: %w", lowTag, err)
		return res
	}

	signalNote := "This signalmask is made with the " + tag + "arcsec resolution cube."
	hybridNotes := []string{
		"This hybridmask is made from the OR combination of the signalmask and lowresmask.",
		signalNote,
		"This lowresmask is made with the " + lowTag + "arcsec resolution cube.",
	}
	if err := mask.Write(ctx, hybrid, c.WCS, c.Header, hybridNotes, entry.HybridMask); err != nil {
		res.Err = fmt.Errorf("failed to write hybrid mask: %w", err)
		return res
	}
	res.HybridMask = entry.HybridMask
	if err := mask.Write(ctx, signal, c.WCS, c.Header, []string{signalNote}, entry.SignalMask); err != nil {
		res.Err = fmt.Errorf("failed to write signal mask: %w", err)
		return res
	}
	res.SignalMask = entry.SignalMask

	var errs []error
	for _, family := range []struct {
		name     string
		m        *cube.Mask
		basename string
		out      *[]moments.Result
	}{
		{"broad", hybrid, entry.Broad, &res.Broad},
		{"strict", signal, entry.Strict, &res.Strict},
	} {
		mc, err := cube.Apply(c, family.m)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", family.name, err))
			continue
		}
		mr, err := cube.Apply(rms, family.m)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", family.name, err))
			continue
		}
		results, err := moments.Write(ctx, mc, mr, family.basename, h.opts.Flags)
		*family.out = results
		if err != nil {
			errs = append(errs, fmt.Errorf("%s products: %w", family.name, err))
		}
	}
	res.Err = errors.Join(errs...)
	return res
}
