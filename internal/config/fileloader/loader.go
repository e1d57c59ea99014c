// Package fileloader loads service configuration from a YAML file layered
// over the built-in defaults.
package fileloader

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/orderharvest/internal/config"
)

// FileLoader loads configuration from a file on disk. It implements the
// Loader interface to provide file-based configuration management.
type FileLoader struct {
	// path is the filesystem path to the configuration file.
	path string
}

var _ config.Loader = (*FileLoader)(nil)

// NewFileLoader creates a new FileLoader reading from the specified path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Load parses the configuration file over the built-in defaults. A missing
// file yields the defaults unchanged.
func (l *FileLoader) Load(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Default()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
