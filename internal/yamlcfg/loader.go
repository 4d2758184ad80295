// Package yamlcfg loads the pipeline configuration from YAML documents. It
// decodes into the same config.File shape as the HCL loader, so both
// formats produce identical models.
package yamlcfg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/cubeproducts/internal/config"
	"github.com/vk/cubeproducts/internal/ctxlog"
	"gopkg.in/yaml.v3"
)

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Handles reports whether path has a YAML extension.
func Handles(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load decodes each file in order and merges it on top of config.Default().
// A file may hold several documents separated by "---".
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	if len(paths) == 0 {
		return nil, errors.New("no YAML files given")
	}

	model := config.Default()
	for _, path := range paths {
		n, err := decodeFile(path, model)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded YAML file.", "path", path, "documents", n)
	}
	return model, nil
}

func decodeFile(path string, model *config.Model) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("error accessing path %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	docs := 0
	for {
		var doc config.File
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return docs, fmt.Errorf("failed to decode YAML file %s: %w", path, err)
		}
		model.Merge(&doc)
		docs++
	}
}
