// internal/config/validate.go
package config

import (
	"fmt"
	"strings"
)

// Timeout bounds, in milliseconds.
const (
	MinTimeoutMs = 1
	MaxTimeoutMs = 60000
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
// Zero values are accepted: Normalize fills them in.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf(
			"config: log.level %q must be one of debug, info, warn, error",
			cfg.Log.Level,
		)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf(
			"config: log.format %q must be console or json",
			cfg.Log.Format,
		)
	}

	if strings.TrimSpace(cfg.Log.Output) != cfg.Log.Output {
		return fmt.Errorf(
			"config: log.output %q must not carry leading or trailing spaces",
			cfg.Log.Output,
		)
	}

	// ------------------------------------------------------------
	// SERIAL
	// ------------------------------------------------------------

	if cfg.Serial.TimeoutMs != 0 &&
		(cfg.Serial.TimeoutMs < MinTimeoutMs || cfg.Serial.TimeoutMs > MaxTimeoutMs) {
		return fmt.Errorf(
			"config: serial.timeout_ms %d out of range %d-%d",
			cfg.Serial.TimeoutMs,
			MinTimeoutMs,
			MaxTimeoutMs,
		)
	}

	return nil
}
