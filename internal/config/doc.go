// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package config defines the format-agnostic configuration model for the
// application, along with the Loader interface for reading it from various
// sources.
//
// # Core Concepts
//
//   - File: the shape of one configuration document. The HCL and YAML loaders
//     both decode into it; its struct tags carry both encodings.
//
//   - Model: the merged, defaulted result of every loaded File. It describes
//     where cubes are read from and products written to, which targets,
//     array configurations and products exist, the resolution ladder of each
//     configuration, and the masking, noise and product settings.
//
// The Model is validated once, at the orchestrator boundary, before any
// cube is touched.
package config
