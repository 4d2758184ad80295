package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
// Values here override the configuration files.
type Config struct {
	ConfigPaths []string // .hcl or .yaml files, or directories of .hcl files

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	// Workers overrides execution.workers when positive.
	Workers int
	DryRun  bool

	// Only lists narrow the loop selection when set.
	Targets  []string
	Configs  []string
	Products []string
}

func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.ConfigPaths) == 0 {
		return nil, errors.New("at least one configuration path is required")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
