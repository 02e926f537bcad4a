// internal/transport/serial.go
package transport

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Errors surfaced by the adapter. Callers classify with errors.Is.
var (
	ErrPortUnavailable          = errors.New("transport: port unavailable")
	ErrUnsupportedConfiguration = errors.New("transport: unsupported line configuration")
	ErrDisconnect               = errors.New("transport: disconnect failed")
	ErrRequestTimedOut          = errors.New("transport: request timed out")
	ErrClosed                   = errors.New("transport: port closed")
)

// LineConfig is the set of serial line parameters applied by Configure.
type LineConfig struct {
	BaudRate int
	DataBits int
	StopBits serial.StopBits
	Parity   serial.Parity
}

// RTULine is the line setup assumed by the target device class: 9600 8N2.
// It is a constant of the tool, not a user setting.
var RTULine = LineConfig{
	BaudRate: 9600,
	DataBits: 8,
	StopBits: serial.TwoStopBits,
	Parity:   serial.NoParity,
}

func (c LineConfig) String() string {
	parity := "N"
	switch c.Parity {
	case serial.OddParity:
		parity = "O"
	case serial.EvenParity:
		parity = "E"
	case serial.MarkParity:
		parity = "M"
	case serial.SpaceParity:
		parity = "S"
	}

	stop := "1"
	switch c.StopBits {
	case serial.OnePointFiveStopBits:
		stop = "1.5"
	case serial.TwoStopBits:
		stop = "2"
	}

	return fmt.Sprintf("%d %d%s%s", c.BaudRate, c.DataBits, parity, stop)
}

// pollInterval bounds each blocking read on the device.
// Read keeps polling until data arrives or the deadline passes.
const pollInterval = 10 * time.Millisecond

// device is the subset of serial.Port the adapter relies on.
type device interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// openDevice is swapped in tests.
var openDevice = func(name string, mode *serial.Mode) (device, error) {
	return serial.Open(name, mode)
}

// Port is one exclusively opened serial device.
// It satisfies io.ReadWriter and adds a read deadline.
type Port struct {
	name     string
	dev      device
	deadline time.Time
	closed   bool
}

// Open opens the named device exclusively.
// The device comes up with the driver's default mode; Configure applies the line setup.
func Open(name string) (*Port, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty port name", ErrPortUnavailable)
	}

	dev, err := openDevice(name, &serial.Mode{BaudRate: RTULine.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, name, err)
	}

	if err := dev.SetReadTimeout(pollInterval); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("%w: %s: set read timeout: %v", ErrPortUnavailable, name, err)
	}

	return &Port{name: name, dev: dev}, nil
}

// Name returns the device name the port was opened with.
func (p *Port) Name() string {
	return p.name
}

// Configure applies line parameters to the open device.
func (p *Port) Configure(c LineConfig) error {
	if p.closed {
		return ErrClosed
	}

	err := p.dev.SetMode(&serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		Parity:   c.Parity,
		StopBits: c.StopBits,
	})
	if err != nil {
		return fmt.Errorf("%w: %s (%s): %v", ErrUnsupportedConfiguration, p.name, c, err)
	}

	return nil
}

// SetDeadline sets the absolute time after which Read fails with ErrRequestTimedOut.
func (p *Port) SetDeadline(t time.Time) error {
	p.deadline = t
	return nil
}

// Read reads from the device.
// Past the deadline it returns ErrRequestTimedOut without touching the device.
// Before the deadline a read that times out on the device returns (0, nil), so
// io.ReadFull keeps calling until enough bytes arrived or the deadline passes.
func (p *Port) Read(b []byte) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	if !p.deadline.IsZero() && time.Now().After(p.deadline) {
		return 0, ErrRequestTimedOut
	}

	n, err := p.dev.Read(b)
	if err != nil {
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PortClosed {
			return n, ErrClosed
		}
		return n, err
	}

	return n, nil
}

// Write sends bytes to the device.
func (p *Port) Write(b []byte) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	return p.dev.Write(b)
}

// Discard drops whatever is waiting in the receive buffer.
func (p *Port) Discard() error {
	if p.closed {
		return ErrClosed
	}
	return p.dev.ResetInputBuffer()
}

// Close releases the device. Calling Close again is a no-op.
// A failing underlying close is reported wrapped in ErrDisconnect.
func (p *Port) Close() error {
	if p == nil || p.closed {
		return nil
	}
	p.closed = true

	if err := p.dev.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDisconnect, p.name, err)
	}

	return nil
}
