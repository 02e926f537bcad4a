// internal/logging/logging.go
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tamzrod/modbus-rtu-writer/internal/config"
)

// OutputDiscard selects a logger that drops every entry.
const OutputDiscard = "discard"

// New builds the process logger from a normalized LogConfig.
// The sink is chosen here, once, instead of redirecting process streams.
func New(c config.LogConfig) (*zap.Logger, error) {
	if c.Output == OutputDiscard {
		return zap.NewNop(), nil
	}

	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = c.Format
	zc.OutputPaths = []string{c.Output}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.Sampling = nil
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if c.Format == "console" {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zc.DisableCaller = true
		zc.DisableStacktrace = true
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}

	return logger, nil
}
