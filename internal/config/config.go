// Package config loads PLL configurations from YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-pll/pll"
)

// Load reads path over pll.DefaultConfig and validates the result. Keys
// absent from the file keep their defaults; unknown keys are an error.
func Load(path string) (pll.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pll.Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return pll.Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data over pll.DefaultConfig and validates it.
func Parse(data []byte) (pll.Config, error) {
	cfg := pll.DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return pll.Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return pll.Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg pll.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
