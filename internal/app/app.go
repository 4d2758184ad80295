package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/vk/cubeproducts/internal/config"
	"github.com/vk/cubeproducts/internal/ctxlog"
)

// ErrStartup wraps every error that prevents a run from starting, such as an
// unreadable or invalid configuration.
var ErrStartup = errors.New("startup failed")

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	model      *config.Model
	runID      string
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It builds the app's
// own logger, loads and validates the configuration, and applies the
// command-line overrides.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader) (*App, error) {
	runID := uuid.NewString()
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW).With("run_id", runID)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load configuration: %w", ErrStartup, err)
	}
	applyOverrides(model, appConfig)
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}
	logger.Debug("Configuration loaded and validated.",
		"targets", len(model.Targets),
		"configs", len(model.Configs),
		"products", len(model.Products),
	)

	return &App{
		outW:   outW,
		logger: logger,
		config: appConfig,
		model:  model,
		runID:  runID,
	}, nil
}

// Model returns the loaded configuration. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}

// RunID returns the identifier attached to every log line of this run.
func (a *App) RunID() string {
	return a.runID
}
