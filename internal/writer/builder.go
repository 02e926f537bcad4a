// internal/writer/builder.go
package writer

import (
	"errors"

	"go.uber.org/zap"

	cfg "github.com/tamzrod/modbus-rtu-writer/internal/config"
	"github.com/tamzrod/modbus-rtu-writer/internal/transport"
	wmodbus "github.com/tamzrod/modbus-rtu-writer/internal/writer/modbus"
)

// Build wires a Dispatcher to real serial ports.
// Assumes config has already passed validation and normalization.
func Build(c *cfg.Config, logger *zap.Logger) (*Dispatcher, error) {
	if c == nil {
		return nil, errors.New("writer: config required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := c.Serial.Timeout()

	// session factory: ONE attempt per call, nothing shared between ports
	factory := func(port string) Session {
		return wmodbus.New(wmodbus.Config{
			Port:    port,
			Timeout: timeout,
			Open:    wmodbus.OpenSerial,
			Logger:  logger,
		})
	}

	return New(factory, transport.ListPorts, logger), nil
}
