// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given paths and merges it into a
	// defaulted Model. Validation is left to the caller.
	Load(ctx context.Context, paths ...string) (*Model, error)
}
