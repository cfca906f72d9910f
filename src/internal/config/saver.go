package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lconfig "github.com/lixenwraith/config"
)

var ErrConfigExists = errors.New("config file already exists")

// SaveToFile writes the configuration as TOML to path, creating the parent
// directory. An existing file is replaced only when overwrite is set.
func (c *Config) SaveToFile(path string, overwrite bool) error {
	if path == "" {
		return fmt.Errorf("cannot save config: path is empty")
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrConfigExists)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	lcfg, err := lconfig.NewBuilder().
		WithTarget(c).
		WithFileFormat("toml").
		Build()
	if err != nil {
		return fmt.Errorf("failed to create config builder: %w", err)
	}

	if err := lcfg.Save(path); err != nil {
		return fmt.Errorf("failed to save config %s: %w", path, err)
	}
	return nil
}
