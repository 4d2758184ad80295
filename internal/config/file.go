// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

// File is the shape of a single configuration document. Optional scalars
// are pointers so that a document only overrides what it sets.
type File struct {
	Paths     *PathsBlock     `hcl:"paths,block" yaml:"paths"`
	Configs   []*ConfigBlock  `hcl:"config,block" yaml:"configs"`
	Targets   []*TargetBlock  `hcl:"target,block" yaml:"targets"`
	Products  []*ProductBlock `hcl:"product,block" yaml:"products"`
	Masking   *MaskingBlock   `hcl:"masking,block" yaml:"masking"`
	Noise     *NoiseBlock     `hcl:"noise,block" yaml:"noise"`
	Moments   *MomentsBlock   `hcl:"moments,block" yaml:"moments"`
	Selection *SelectionBlock `hcl:"selection,block" yaml:"selection"`
	Execution *ExecutionBlock `hcl:"execution,block" yaml:"execution"`
	Notify    *NotifyBlock    `hcl:"notify,block" yaml:"notify"`
}

type PathsBlock struct {
	PostprocessRoot *string `hcl:"postprocess_root,optional" yaml:"postprocess_root"`
	ProductRoot     *string `hcl:"product_root,optional" yaml:"product_root"`
}

type ConfigBlock struct {
	Name        string    `hcl:"name,label" yaml:"name"`
	Kind        *string   `hcl:"kind,optional" yaml:"kind"`
	Resolutions []float64 `hcl:"resolutions" yaml:"resolutions"`
}

type TargetBlock struct {
	Name    string   `hcl:"name,label" yaml:"name"`
	Configs []string `hcl:"configs,optional" yaml:"configs"`
}

type ProductBlock struct {
	Name string  `hcl:"name,label" yaml:"name"`
	Kind *string `hcl:"kind,optional" yaml:"kind"`
}

type MaskingBlock struct {
	HiThresh  *float64 `hcl:"hi_thresh,optional" yaml:"hi_thresh"`
	HiNChan   *int     `hcl:"hi_nchan,optional" yaml:"hi_nchan"`
	LoThresh  *float64 `hcl:"lo_thresh,optional" yaml:"lo_thresh"`
	LoNChan   *int     `hcl:"lo_nchan,optional" yaml:"lo_nchan"`
	LowResTag *string  `hcl:"lowres_tag,optional" yaml:"lowres_tag"`
}

type NoiseBlock struct {
	Method     *string  `hcl:"method,optional" yaml:"method"`
	ClipSigma  *float64 `hcl:"clip_sigma,optional" yaml:"clip_sigma"`
	Iterations *int     `hcl:"iterations,optional" yaml:"iterations"`
	Tolerance  *float64 `hcl:"tolerance,optional" yaml:"tolerance"`
	SpatialBox *int     `hcl:"spatial_box,optional" yaml:"spatial_box"`
	Sigma      *float64 `hcl:"sigma,optional" yaml:"sigma"`
}

type MomentsBlock struct {
	Moment0   *bool `hcl:"moment0,optional" yaml:"moment0"`
	Moment1   *bool `hcl:"moment1,optional" yaml:"moment1"`
	Moment2   *bool `hcl:"moment2,optional" yaml:"moment2"`
	EW        *bool `hcl:"ew,optional" yaml:"ew"`
	TMax      *bool `hcl:"tmax,optional" yaml:"tmax"`
	VMax      *bool `hcl:"vmax,optional" yaml:"vmax"`
	VQuad     *bool `hcl:"vquad,optional" yaml:"vquad"`
	ErrorMaps *bool `hcl:"error_maps,optional" yaml:"error_maps"`
}

type SelectionBlock struct {
	OnlyTargets  []string `hcl:"only_targets,optional" yaml:"only_targets"`
	SkipTargets  []string `hcl:"skip_targets,optional" yaml:"skip_targets"`
	OnlyConfigs  []string `hcl:"only_configs,optional" yaml:"only_configs"`
	SkipConfigs  []string `hcl:"skip_configs,optional" yaml:"skip_configs"`
	OnlyProducts []string `hcl:"only_products,optional" yaml:"only_products"`
	SkipProducts []string `hcl:"skip_products,optional" yaml:"skip_products"`
	NoInterf     *bool    `hcl:"no_interf,optional" yaml:"no_interf"`
	NoFeather    *bool    `hcl:"no_feather,optional" yaml:"no_feather"`
	NoCont       *bool    `hcl:"no_cont,optional" yaml:"no_cont"`
	NoLine       *bool    `hcl:"no_line,optional" yaml:"no_line"`
}

type ExecutionBlock struct {
	Workers         *int  `hcl:"workers,optional" yaml:"workers"`
	DryRun          *bool `hcl:"dry_run,optional" yaml:"dry_run"`
	MakeDirectories *bool `hcl:"make_directories,optional" yaml:"make_directories"`
}

type NotifyBlock struct {
	URL                string  `hcl:"url" yaml:"url"`
	Namespace          *string `hcl:"namespace,optional" yaml:"namespace"`
	Event              *string `hcl:"event,optional" yaml:"event"`
	Timeout            *string `hcl:"timeout,optional" yaml:"timeout"`
	InsecureSkipVerify *bool   `hcl:"insecure_skip_verify,optional" yaml:"insecure_skip_verify"`
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setList(dst *[]string, v []string) {
	if v != nil {
		*dst = append([]string(nil), v...)
	}
}

// Merge applies a document on top of the model. Named blocks (configs,
// targets, products) replace an earlier block of the same name; singleton
// blocks override only the fields they set.
func (m *Model) Merge(f *File) {
	if p := f.Paths; p != nil {
		setString(&m.Paths.PostprocessRoot, p.PostprocessRoot)
		setString(&m.Paths.ProductRoot, p.ProductRoot)
	}

	for _, b := range f.Configs {
		c := &ArrayConfig{Name: b.Name, Kind: KindInterf, Resolutions: append([]float64(nil), b.Resolutions...)}
		setString(&c.Kind, b.Kind)
		if i := indexOf(len(m.Configs), func(i int) bool { return m.Configs[i].Name == c.Name }); i >= 0 {
			m.Configs[i] = c
		} else {
			m.Configs = append(m.Configs, c)
		}
	}
	for _, b := range f.Targets {
		t := &Target{Name: b.Name, Configs: append([]string(nil), b.Configs...)}
		if i := indexOf(len(m.Targets), func(i int) bool { return m.Targets[i].Name == t.Name }); i >= 0 {
			m.Targets[i] = t
		} else {
			m.Targets = append(m.Targets, t)
		}
	}
	for _, b := range f.Products {
		p := &Product{Name: b.Name, Kind: KindLine}
		setString(&p.Kind, b.Kind)
		if i := indexOf(len(m.Products), func(i int) bool { return m.Products[i].Name == p.Name }); i >= 0 {
			m.Products[i] = p
		} else {
			m.Products = append(m.Products, p)
		}
	}

	if b := f.Masking; b != nil {
		setFloat(&m.Masking.HiThresh, b.HiThresh)
		setInt(&m.Masking.HiNChan, b.HiNChan)
		setFloat(&m.Masking.LoThresh, b.LoThresh)
		setInt(&m.Masking.LoNChan, b.LoNChan)
		setString(&m.Masking.LowResTag, b.LowResTag)
	}
	if b := f.Noise; b != nil {
		setString(&m.Noise.Method, b.Method)
		setFloat(&m.Noise.ClipSigma, b.ClipSigma)
		setInt(&m.Noise.Iterations, b.Iterations)
		setFloat(&m.Noise.Tolerance, b.Tolerance)
		setInt(&m.Noise.SpatialBox, b.SpatialBox)
		setFloat(&m.Noise.Sigma, b.Sigma)
	}
	if b := f.Moments; b != nil {
		setBool(&m.Moments.Moment0, b.Moment0)
		setBool(&m.Moments.Moment1, b.Moment1)
		setBool(&m.Moments.Moment2, b.Moment2)
		setBool(&m.Moments.EW, b.EW)
		setBool(&m.Moments.TMax, b.TMax)
		setBool(&m.Moments.VMax, b.VMax)
		setBool(&m.Moments.VQuad, b.VQuad)
		setBool(&m.Moments.ErrorMaps, b.ErrorMaps)
	}
	if b := f.Selection; b != nil {
		setList(&m.Selection.OnlyTargets, b.OnlyTargets)
		setList(&m.Selection.SkipTargets, b.SkipTargets)
		setList(&m.Selection.OnlyConfigs, b.OnlyConfigs)
		setList(&m.Selection.SkipConfigs, b.SkipConfigs)
		setList(&m.Selection.OnlyProducts, b.OnlyProducts)
		setList(&m.Selection.SkipProducts, b.SkipProducts)
		setBool(&m.Selection.NoInterf, b.NoInterf)
		setBool(&m.Selection.NoFeather, b.NoFeather)
		setBool(&m.Selection.NoCont, b.NoCont)
		setBool(&m.Selection.NoLine, b.NoLine)
	}
	if b := f.Execution; b != nil {
		setInt(&m.Execution.Workers, b.Workers)
		setBool(&m.Execution.DryRun, b.DryRun)
		setBool(&m.Execution.MakeDirectories, b.MakeDirectories)
	}
	if b := f.Notify; b != nil {
		n := &Notify{URL: b.URL, Namespace: "/", Event: "progress", Timeout: "5s"}
		setString(&n.Namespace, b.Namespace)
		setString(&n.Event, b.Event)
		setString(&n.Timeout, b.Timeout)
		setBool(&n.InsecureSkipVerify, b.InsecureSkipVerify)
		m.Notify = n
	}
}

func indexOf(n int, match func(i int) bool) int {
	for i := 0; i < n; i++ {
		if match(i) {
			return i
		}
	}
	return -1
}
