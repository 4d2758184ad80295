package app

import (
	"errors"

	"github.com/vk/cubeproducts/internal/config"
	"github.com/vk/cubeproducts/internal/hcl"
	"github.com/vk/cubeproducts/internal/yamlcfg"
)

// LoaderFor picks the configuration loader for a set of paths. YAML files
// go to the YAML loader; anything else, directories included, is HCL.
// Mixing the two formats in one run is rejected.
func LoaderFor(paths []string) (config.Loader, error) {
	yamlCount := 0
	for _, p := range paths {
		if yamlcfg.Handles(p) {
			yamlCount++
		}
	}
	switch yamlCount {
	case 0:
		return hcl.NewLoader(), nil
	case len(paths):
		return yamlcfg.NewLoader(), nil
	}
	return nil, errors.New("cannot mix YAML and HCL configuration paths")
}

// applyOverrides copies command-line settings onto the loaded model.
func applyOverrides(m *config.Model, c *Config) {
	if c.Workers > 0 {
		m.Execution.Workers = c.Workers
	}
	if c.DryRun {
		m.Execution.DryRun = true
	}
	if len(c.Targets) > 0 {
		m.Selection.OnlyTargets = c.Targets
	}
	if len(c.Configs) > 0 {
		m.Selection.OnlyConfigs = c.Configs
	}
	if len(c.Products) > 0 {
		m.Selection.OnlyProducts = c.Products
	}
}
