// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the model once, before any processing starts. All
// problems are reported together.
func (m *Model) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if m.Paths.PostprocessRoot == "" {
		fail("paths.postprocess_root is required")
	}
	if m.Paths.ProductRoot == "" {
		fail("paths.product_root is required")
	}

	seen := make(map[string]bool)
	for _, c := range m.Configs {
		if seen[c.Name] {
			fail("config %q is declared twice", c.Name)
		}
		seen[c.Name] = true
		if c.Kind != KindInterf && c.Kind != KindFeather {
			fail("config %q: kind must be %q or %q, got %q", c.Name, KindInterf, KindFeather, c.Kind)
		}
		if len(c.Resolutions) == 0 {
			fail("config %q: at least one resolution is required", c.Name)
		}
		for _, r := range c.Resolutions {
			if !(r > 0) || math.IsInf(r, 0) {
				fail("config %q: resolution %v must be a positive number", c.Name, r)
			}
		}
	}

	for _, t := range m.Targets {
		for _, name := range t.Configs {
			if !seen[name] {
				fail("target %q references undeclared config %q", t.Name, name)
			}
		}
	}
	for _, p := range m.Products {
		if p.Kind != KindLine && p.Kind != KindCont {
			fail("product %q: kind must be %q or %q, got %q", p.Name, KindLine, KindCont, p.Kind)
		}
	}

	if !(m.Masking.HiThresh > 0) {
		fail("masking.hi_thresh must be > 0")
	}
	if !(m.Masking.LoThresh > 0) {
		fail("masking.lo_thresh must be > 0")
	}
	if m.Masking.HiNChan < 1 {
		fail("masking.hi_nchan must be >= 1")
	}
	if m.Masking.LoNChan < 1 {
		fail("masking.lo_nchan must be >= 1")
	}

	switch m.Noise.Method {
	case NoiseMAD:
		if !(m.Noise.ClipSigma > 0) {
			fail("noise.clip_sigma must be > 0")
		}
		if m.Noise.Iterations < 1 {
			fail("noise.iterations must be >= 1")
		}
		if m.Noise.SpatialBox < 0 {
			fail("noise.spatial_box must be >= 0")
		}
	case NoiseConstant:
		if !(m.Noise.Sigma > 0) {
			fail("noise.sigma must be > 0 when method is %q", NoiseConstant)
		}
	default:
		fail("noise.method must be %q or %q, got %q", NoiseMAD, NoiseConstant, m.Noise.Method)
	}

	mo := m.Moments
	if !(mo.Moment0 || mo.Moment1 || mo.Moment2 || mo.EW || mo.TMax || mo.VMax || mo.VQuad) {
		fail("at least one product kind must be enabled in moments")
	}

	if m.Execution.Workers < 1 {
		fail("execution.workers must be >= 1")
	}

	if n := m.Notify; n != nil {
		if n.URL == "" {
			fail("notify.url is required")
		}
		if _, err := time.ParseDuration(n.Timeout); err != nil {
			fail("notify.timeout: %v", err)
		}
	}

	return errors.Join(errs...)
}
