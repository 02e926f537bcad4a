// internal/config/normalize.go
package config

import (
	"strings"
	"time"
)

// Defaults applied by Normalize.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
	DefaultLogOutput = "stderr"
	DefaultTimeoutMs = 1000
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}

	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Log.Output == "" {
		cfg.Log.Output = DefaultLogOutput
	}

	if cfg.Serial.TimeoutMs == 0 {
		cfg.Serial.TimeoutMs = DefaultTimeoutMs
	}
}

// Timeout returns the response timeout as a duration.
func (s SerialConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}
