// Package handler is the orchestrator of the masking and product stage. For
// every (target, product, config) it builds the low-resolution reference
// mask once, then the signal and hybrid masks of every resolution found on
// disk, and collapses the masked cubes into the broad and strict products.
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/cubeproducts/internal/catalog"
	"github.com/vk/cubeproducts/internal/config"
	"github.com/vk/cubeproducts/internal/diag"
	"github.com/vk/cubeproducts/internal/filenames"
	"github.com/vk/cubeproducts/internal/mask"
	"github.com/vk/cubeproducts/internal/moments"
	"github.com/vk/cubeproducts/internal/noise"
	"github.com/vk/cubeproducts/internal/notify"
)

var (
	// ErrConfiguration is returned when a target, product or config is not
	// given.
	ErrConfiguration = filenames.ErrConfiguration
	// ErrNoResolutions is returned when no cube of a triple exists on disk.
	ErrNoResolutions = errors.New("no resolutions present")
)

// Catalog enumerates the work and locates files.
type Catalog interface {
	filenames.Catalog
	Targets() []string
	Products() []string
	Triples() []catalog.Triple
	MakeMissingDirectories(ctx context.Context) error
}

// Options tunes a Handler.
type Options struct {
	Masking mask.Params
	// LowResTag is the preferred low-resolution reference. The coarsest
	// present resolution is used when empty or absent.
	LowResTag       string
	Flags           moments.Flags
	Workers         int
	DryRun          bool
	MakeDirectories bool
	// RunID is attached to notifications.
	RunID string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Masking:         mask.DefaultParams(),
		Flags:           moments.DefaultFlags(),
		Workers:         1,
		MakeDirectories: true,
	}
}

// Handler runs the recipes. It is safe to call the recipes of different
// triples concurrently; Loop processes triples one after another.
type Handler struct {
	cat       Catalog
	resolver  *filenames.Resolver
	estimator noise.Estimator
	builder   *mask.Builder
	sink      *diag.Sink
	notifier  notify.Notifier
	opts      Options
}

// New creates a Handler. A nil sink or notifier is replaced by one that
// discards.
func New(cat Catalog, est noise.Estimator, sink *diag.Sink, n notify.Notifier, opts Options) (*Handler, error) {
	if cat == nil || est == nil {
		return nil, fmt.Errorf("%w: handler needs a catalog and a noise estimator", ErrConfiguration)
	}
	builder, err := mask.NewBuilder(opts.Masking)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if sink == nil {
		sink = diag.NewSink(nil)
	}
	if n == nil {
		n = notify.Noop{}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Handler{
		cat:       cat,
		resolver:  filenames.NewResolver(cat, sink),
		estimator: est,
		builder:   builder,
		sink:      sink,
		notifier:  n,
		opts:      opts,
	}, nil
}

// NewFromModel creates a Handler from a validated model.
func NewFromModel(m *config.Model, sink *diag.Sink, n notify.Notifier, runID string) (*Handler, error) {
	est, err := EstimatorFromModel(m.Noise)
	if err != nil {
		return nil, err
	}
	opts := Options{
		Masking: mask.Params{
			HiThresh: m.Masking.HiThresh,
			HiNChan:  m.Masking.HiNChan,
			LoThresh: m.Masking.LoThresh,
			LoNChan:  m.Masking.LoNChan,
		},
		LowResTag: m.Masking.LowResTag,
		Flags: moments.Flags{
			Moment0:   m.Moments.Moment0,
			Moment1:   m.Moments.Moment1,
			Moment2:   m.Moments.Moment2,
			EW:        m.Moments.EW,
			TMax:      m.Moments.TMax,
			VMax:      m.Moments.VMax,
			VQuad:     m.Moments.VQuad,
			ErrorMaps: m.Moments.ErrorMaps,
		},
		Workers:         m.Execution.Workers,
		DryRun:          m.Execution.DryRun,
		MakeDirectories: m.Execution.MakeDirectories,
		RunID:           runID,
	}
	return New(catalog.New(m), est, sink, n, opts)
}

// EstimatorFromModel returns the noise estimator selected by the model.
func EstimatorFromModel(n config.Noise) (noise.Estimator, error) {
	switch n.Method {
	case config.NoiseConstant:
		return noise.Constant{Sigma: n.Sigma}, nil
	case config.NoiseMAD, "":
		return noise.NewMAD(noise.Params{
			ClipSigma:  n.ClipSigma,
			Iterations: n.Iterations,
			Tolerance:  n.Tolerance,
			SpatialBox: n.SpatialBox,
		}), nil
	}
	return nil, fmt.Errorf("%w: unknown noise method %q", ErrConfiguration, n.Method)
}

// Sink returns the diagnostics sink of the handler.
func (h *Handler) Sink() *diag.Sink {
	return h.sink
}

func checkArgs(target, product, config string) error {
	switch {
	case target == "":
		return fmt.Errorf("%w: need a target", ErrConfiguration)
	case product == "":
		return fmt.Errorf("%w: need a product", ErrConfiguration)
	case config == "":
		return fmt.Errorf("%w: need a config", ErrConfiguration)
	}
	return nil
}
