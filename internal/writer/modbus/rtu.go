// internal/writer/modbus/rtu.go
package modbus

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/modbus-rtu-writer/internal/transport"
)

const (
	maxRTUFrameLength = 256

	// unit id + function code
	rtuHeaderSize = 2
	// unit id + function code + exception code + crc
	rtuExceptionSize = 5
	// unit id + function code + address + value + crc
	rtuWriteSingleSize = 8
)

var (
	// ErrUnexpectedFunction is returned for a response whose length cannot be derived.
	ErrUnexpectedFunction = errors.New("writer modbus: unexpected response function code")
	ErrShortWrite         = errors.New("writer modbus: short write")
)

// rtuTransporter implements modbus.Transporter over a Link.
// Framing and CRC are done by the packager; this moves bytes and observes
// the RTU inter-frame gap.
type rtuTransporter struct {
	link         Link
	timeout      time.Duration
	t1           time.Duration
	t35          time.Duration
	lastActivity time.Time
}

func newRTUTransporter(link Link, timeout time.Duration, baud int) *rtuTransporter {
	rt := &rtuTransporter{
		link:    link,
		timeout: timeout,
		t1:      serialCharTime(baud),
	}

	if baud >= 19200 {
		// fixed 1750us t3.5 above 19200 bauds
		rt.t35 = 1750 * time.Microsecond
	} else {
		rt.t35 = (rt.t1 * 35) / 10
	}

	return rt
}

// Send writes one request ADU and reads back one response ADU.
func (rt *rtuTransporter) Send(aduRequest []byte) ([]byte, error) {
	if len(aduRequest) < rtuHeaderSize {
		return nil, fmt.Errorf("writer modbus: request too short (%d bytes)", len(aduRequest))
	}

	// let t3.5 expire if the line was active recently
	if d := time.Until(rt.lastActivity.Add(rt.t35)); d > 0 {
		time.Sleep(d)
	}

	if d, ok := rt.link.(interface{ Discard() error }); ok {
		_ = d.Discard()
	}

	if err := rt.link.SetDeadline(time.Now().Add(rt.timeout)); err != nil {
		return nil, err
	}

	ts := time.Now()
	n, err := rt.link.Write(aduRequest)
	if err != nil {
		return nil, fmt.Errorf("writer modbus: send: %w", err)
	}
	if n != len(aduRequest) {
		return nil, fmt.Errorf("%w (%d of %d bytes)", ErrShortWrite, n, len(aduRequest))
	}
	rt.lastActivity = ts.Add(time.Duration(n) * rt.t1)

	res, err := rt.readFrame()
	if !errors.Is(err, transport.ErrRequestTimedOut) {
		rt.lastActivity = time.Now()
	}

	return res, err
}

// readFrame reads one response ADU, sized from its function code.
func (rt *rtuTransporter) readFrame() ([]byte, error) {
	adu := make([]byte, maxRTUFrameLength)

	if _, err := io.ReadFull(rt.link, adu[:rtuHeaderSize]); err != nil {
		return nil, fmt.Errorf("writer modbus: read response header: %w", err)
	}

	total, err := expectedResponseLength(adu[1])
	if err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(rt.link, adu[rtuHeaderSize:total]); err != nil {
		return nil, fmt.Errorf("writer modbus: read response body: %w", err)
	}

	return adu[:total], nil
}

// expectedResponseLength returns the full ADU length of a response to one of
// the supported requests.
func expectedResponseLength(functionCode byte) (int, error) {
	switch {
	case functionCode&0x80 != 0:
		return rtuExceptionSize, nil
	case functionCode == modbus.FuncCodeWriteSingleCoil,
		functionCode == modbus.FuncCodeWriteSingleRegister:
		return rtuWriteSingleSize, nil
	default:
		return 0, fmt.Errorf("%w: 0x%02x", ErrUnexpectedFunction, functionCode)
	}
}

// serialCharTime returns how long one RTU character takes on the line
// (start bit, 8 data bits, parity or second stop bit, stop bit).
func serialCharTime(baud int) time.Duration {
	if baud <= 0 {
		return 0
	}
	return 11 * time.Second / time.Duration(baud)
}
