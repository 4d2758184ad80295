package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/cubeproducts/internal/catalog"
	"github.com/vk/cubeproducts/internal/ctxlog"
	"github.com/vk/cubeproducts/internal/diag"
	"github.com/vk/cubeproducts/internal/moments"
	"github.com/vk/cubeproducts/internal/notify"
)

// Status is the outcome of one triple.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusPlanned Status = "planned"
)

// TripleResult records what happened to one (target, product, config).
type TripleResult struct {
	catalog.Triple
	Status      Status
	LowResTag   string
	Resolutions []ResolutionResult
	// Planned lists the files a dry run would write.
	Planned []string
	Err     error
}

// Summary is the result of Loop.
type Summary struct {
	Triples []TripleResult
}

// Count returns the number of triples with status s.
func (s Summary) Count(st Status) int {
	n := 0
	for _, t := range s.Triples {
		if t.Status == st {
			n++
		}
	}
	return n
}

// Loop processes every selected triple in order. A failing triple is
// reported and the loop moves on; the returned error joins every failure.
func (h *Handler) Loop(ctx context.Context) (Summary, error) {
	logger := ctxlog.FromContext(ctx)
	var summary Summary

	if len(h.cat.Targets()) == 0 {
		return summary, fmt.Errorf("%w: need a target list", ErrConfiguration)
	}
	if len(h.cat.Products()) == 0 {
		return summary, fmt.Errorf("%w: need a products list", ErrConfiguration)
	}
	if h.opts.MakeDirectories && !h.opts.DryRun {
		if err := h.cat.MakeMissingDirectories(ctx); err != nil {
			return summary, err
		}
	}

	triples := h.cat.Triples()
	logger.Info("Starting product loop.", "triples", len(triples), "dry_run", h.opts.DryRun, "workers", h.opts.Workers)

	var errs []error
	for _, t := range triples {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		start := time.Now()
		h.notifier.Notify(ctx, notify.Event{Name: notify.TripleStarted, RunID: h.opts.RunID, Target: t.Target, Product: t.Product, Config: t.Config})

		var tr TripleResult
		if h.opts.DryRun {
			tr = h.planTriple(ctx, t)
		} else {
			tr = h.runTriple(ctx, t)
		}
		summary.Triples = append(summary.Triples, tr)

		ev := notify.Event{
			Name:     notify.TripleFinished,
			RunID:    h.opts.RunID,
			Target:   t.Target,
			Product:  t.Product,
			Config:   t.Config,
			Status:   string(tr.Status),
			Duration: time.Since(start),
		}
		for _, r := range tr.Resolutions {
			ev.Outputs += r.Outputs()
		}
		if tr.Err != nil {
			ev.Error = tr.Err.Error()
			scope := diag.Scope{Target: t.Target, Product: t.Product, Config: t.Config}
			h.sink.Errorf(ctx, scope, tr.Err, "Processing %s failed.", t)
			errs = append(errs, fmt.Errorf("%s: %w", t, tr.Err))
		}
		h.notifier.Notify(ctx, ev)
	}

	h.notifier.Notify(ctx, notify.Event{Name: notify.RunFinished, RunID: h.opts.RunID, Status: runStatus(errs)})
	logger.Info("Product loop finished.",
		"ok", summary.Count(StatusOK),
		"failed", summary.Count(StatusFailed),
		"planned", summary.Count(StatusPlanned),
	)
	return summary, errors.Join(errs...)
}

func runStatus(errs []error) string {
	if len(errs) > 0 {
		return string(StatusFailed)
	}
	return string(StatusOK)
}

func (h *Handler) runTriple(ctx context.Context, t catalog.Triple) TripleResult {
	tr := TripleResult{Triple: t, Status: StatusFailed}
	tctx := ctxlog.With(ctx, "target", t.Target, "product", t.Product, "config", t.Config)

	lowMask, lowTag, err := h.BuildLowResMask(tctx, t.Target, t.Product, t.Config, h.opts.LowResTag)
	if err != nil {
		tr.Err = err
		return tr
	}
	tr.LowResTag = lowTag

	tr.Resolutions, tr.Err = h.BuildAllMasksAndProducts(tctx, t.Target, t.Product, t.Config, lowMask, lowTag)
	if tr.Err == nil {
		tr.Status = StatusOK
	}
	return tr
}

// planTriple resolves the file table of a triple and lists the files a real
// run would write, without reading cubes or writing anything.
func (h *Handler) planTriple(ctx context.Context, t catalog.Triple) TripleResult {
	tr := TripleResult{Triple: t, Status: StatusFailed}
	logger := ctxlog.FromContext(ctx)

	table, err := h.resolver.Plan(ctx, t.Target, t.Config, t.Product, h.opts.LowResTag)
	if err != nil {
		tr.Err = err
		return tr
	}
	if table.Empty() {
		tr.Err = fmt.Errorf("%w: target %s, product %s, config %s", ErrNoResolutions, t.Target, t.Product, t.Config)
		return tr
	}
	tr.LowResTag = table.LowResTag

	for _, tag := range table.Order {
		e, _ := table.Lookup(tag)
		tr.Planned = append(tr.Planned, e.HybridMask, e.SignalMask)
		for _, base := range []string{e.Broad, e.Strict} {
			for _, k := range h.opts.Flags.Kinds() {
				out, errf := moments.Paths(base, k, h.opts.Flags.ErrorMaps)
				tr.Planned = append(tr.Planned, out)
				if errf != "" {
					tr.Planned = append(tr.Planned, errf)
				}
			}
		}
	}
	for _, p := range tr.Planned {
		logger.Info("Would write.", "path", p)
	}
	tr.Status = StatusPlanned
	return tr
}
