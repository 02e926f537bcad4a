// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goburrow/modbus"
	"go.uber.org/zap"

	"github.com/tamzrod/modbus-rtu-writer/internal/transport"
)

// Link is the byte channel a session runs over.
// *transport.Port implements it.
type Link interface {
	io.ReadWriter
	SetDeadline(t time.Time) error
	Configure(c transport.LineConfig) error
	Close() error
}

// Opener opens a Link by device name. ONE attempt per call.
type Opener func(name string) (Link, error)

// OpenSerial is the default Opener.
func OpenSerial(name string) (Link, error) {
	p, err := transport.Open(name)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultTimeout bounds the wait for a response when Config.Timeout is unset.
const DefaultTimeout = time.Second

// Config describes one session. Zero fields take defaults in New.
type Config struct {
	Port    string
	Timeout time.Duration
	Open    Opener
	Logger  *zap.Logger
}

// Client is a single Modbus RTU session on one serial port.
// It owns the link from Connect until Close and is not safe for concurrent use.
type Client struct {
	port    string
	timeout time.Duration
	open    Opener
	logger  *zap.Logger

	packager *modbus.RTUClientHandler
	link     Link
	client   modbus.Client
}

// New creates an unconnected session for cfg.Port with unit id 1.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Open == nil {
		cfg.Open = OpenSerial
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	// The handler is used for its RTU packager only (framing, CRC, verify).
	// Bytes move through our own transporter over the Link.
	h := &modbus.RTUClientHandler{}
	h.SlaveId = 1

	return &Client{
		port:     cfg.Port,
		timeout:  cfg.Timeout,
		open:     cfg.Open,
		logger:   cfg.Logger.With(zap.String("port", cfg.Port)),
		packager: h,
	}
}

// Port returns the device name of the session.
func (c *Client) Port() string {
	return c.port
}

// SetUnitID sets the slave id of subsequent requests.
func (c *Client) SetUnitID(id uint8) {
	c.packager.SlaveId = id
}

// Connect opens the link and applies transport.RTULine.
// A rejected line setup is logged and the session carries on: some links
// work with their default parameters.
func (c *Client) Connect() error {
	if c.link != nil {
		return nil
	}

	link, err := c.open(c.port)
	if err != nil {
		if !errors.Is(err, transport.ErrPortUnavailable) {
			err = fmt.Errorf("%w: %s: %v", transport.ErrPortUnavailable, c.port, err)
		}
		return err
	}

	if err := link.Configure(transport.RTULine); err != nil {
		c.logger.Warn("line configuration rejected, continuing with device defaults",
			zap.Stringer("line", transport.RTULine),
			zap.Error(err),
		)
	}

	c.link = link
	c.client = modbus.NewClient2(c.packager, newRTUTransporter(link, c.timeout, transport.RTULine.BaudRate))

	return nil
}

// WriteCoil writes a single coil (function code 0x05).
func (c *Client) WriteCoil(addr uint16, on bool) error {
	if c.client == nil {
		return ErrNotConnected
	}

	_, err := c.client.WriteSingleCoil(addr, CoilValue(on))
	if err != nil {
		return fmt.Errorf("writer modbus: write coil %d: %w", addr, err)
	}
	return nil
}

// WriteRegister writes a single 16-bit holding register (function code 0x06).
func (c *Client) WriteRegister(addr uint16, value uint16) error {
	if c.client == nil {
		return ErrNotConnected
	}

	_, err := c.client.WriteSingleRegister(addr, value)
	if err != nil {
		return fmt.Errorf("writer modbus: write register %d: %w", addr, err)
	}
	return nil
}

// Close releases the link. It is safe to call on a session that never
// connected and to call again after a failed close.
func (c *Client) Close() error {
	if c.link == nil {
		return nil
	}

	err := c.link.Close()
	if err != nil {
		if !errors.Is(err, transport.ErrDisconnect) {
			err = fmt.Errorf("%w: %s: %v", transport.ErrDisconnect, c.port, err)
		}
		return err
	}

	c.link = nil
	c.client = nil
	return nil
}

// ---- helpers ----

// ErrNotConnected is returned by writes issued before Connect.
var ErrNotConnected = errors.New("writer modbus: not connected")

// CoilValue maps a coil state to its FC05 payload.
func CoilValue(on bool) uint16 {
	if on {
		return 0xFF00
	}
	return 0x0000
}
