// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

// Config kinds.
const (
	KindInterf  = "interf"
	KindFeather = "feather"
)

// Product kinds.
const (
	KindLine = "line"
	KindCont = "cont"
)

// Noise estimation methods.
const (
	NoiseMAD      = "mad"
	NoiseConstant = "constant"
)

// Model is the unified, format-agnostic representation of the configuration.
type Model struct {
	Paths     Paths
	Configs   []*ArrayConfig
	Targets   []*Target
	Products  []*Product
	Masking   Masking
	Noise     Noise
	Moments   Moments
	Selection Selection
	Execution Execution
	Notify    *Notify
}

// Paths locates inputs and outputs. Cubes of a target are read from
// PostprocessRoot/<target> and products are written to ProductRoot/<target>.
type Paths struct {
	PostprocessRoot string
	ProductRoot     string
}

// ArrayConfig is an observational configuration and its resolution ladder in
// arcseconds.
type ArrayConfig struct {
	Name        string
	Kind        string
	Resolutions []float64
}

// Target is an astronomical source. An empty Configs list means every
// declared configuration applies.
type Target struct {
	Name    string
	Configs []string
}

// Product is a spectral line or continuum cube family.
type Product struct {
	Name string
	Kind string
}

// Masking holds the thresholds of the signal mask and the preferred
// low-resolution reference tag.
type Masking struct {
	HiThresh  float64
	HiNChan   int
	LoThresh  float64
	LoNChan   int
	LowResTag string
}

// Noise selects and tunes the noise estimator.
type Noise struct {
	Method     string
	ClipSigma  float64
	Iterations int
	Tolerance  float64
	SpatialBox int
	Sigma      float64
}

// Moments toggles each product kind and the error maps.
type Moments struct {
	Moment0   bool
	Moment1   bool
	Moment2   bool
	EW        bool
	TMax      bool
	VMax      bool
	VQuad     bool
	ErrorMaps bool
}

// Selection restricts the loop. Only lists win over Skip lists when both
// name the same item.
type Selection struct {
	OnlyTargets  []string
	SkipTargets  []string
	OnlyConfigs  []string
	SkipConfigs  []string
	OnlyProducts []string
	SkipProducts []string
	NoInterf     bool
	NoFeather    bool
	NoCont       bool
	NoLine       bool
}

// Execution controls how the loop runs.
type Execution struct {
	Workers         int
	DryRun          bool
	MakeDirectories bool
}

// Notify configures the optional socket.io progress channel.
type Notify struct {
	URL                string
	Namespace          string
	Event              string
	Timeout            string
	InsecureSkipVerify bool
}

// Default returns a Model with every setting at its default.
func Default() *Model {
	return &Model{
		Masking: Masking{HiThresh: 5, HiNChan: 2, LoThresh: 5, LoNChan: 2},
		Noise:   Noise{Method: NoiseMAD, ClipSigma: 3, Iterations: 10, Tolerance: 0.02},
		Moments: Moments{
			Moment0: true, Moment1: true, Moment2: true, EW: true,
			TMax: true, VMax: true, VQuad: true, ErrorMaps: true,
		},
		Execution: Execution{Workers: 1, MakeDirectories: true},
	}
}

// Config returns the configuration with the given name.
func (m *Model) Config(name string) (*ArrayConfig, bool) {
	for _, c := range m.Configs {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Target returns the target with the given name.
func (m *Model) Target(name string) (*Target, bool) {
	for _, t := range m.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Product returns the product with the given name.
func (m *Model) Product(name string) (*Product, bool) {
	for _, p := range m.Products {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}
