// internal/config/config.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log    LogConfig    `yaml:"log"`
	Serial SerialConfig `yaml:"serial"`
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
	Output string `yaml:"output"` // stderr | stdout | discard | <file path>
}

// ---- SERIAL ----

// SerialConfig holds the tunable part of a serial attempt.
// Line parameters (baud, data bits, stop bits, parity) are fixed by the
// target device class and are intentionally not part of the file.
type SerialConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
}

// Load reads a YAML configuration file.
// An empty path yields an empty config; callers run Validate and Normalize on it as usual.
func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	return Parse(raw)
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(raw []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	return &cfg, nil
}
