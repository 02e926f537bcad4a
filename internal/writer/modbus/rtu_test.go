// internal/writer/modbus/rtu_test.go
package modbus

import (
	"errors"
	"testing"
	"time"

	"github.com/tamzrod/modbus-rtu-writer/internal/transport"
)

// shortLink accepts only part of every write.
type shortLink struct {
	reads int
}

func (l *shortLink) Read([]byte) (int, error) {
	l.reads++
	return 0, transport.ErrRequestTimedOut
}
func (l *shortLink) Write(p []byte) (int, error) { return len(p) / 2, nil }
func (l *shortLink) SetDeadline(time.Time) error { return nil }
func (l *shortLink) Configure(transport.LineConfig) error { return nil }
func (l *shortLink) Close() error { return nil }

func TestExpectedResponseLength(t *testing.T) {
	cases := []struct {
		fc   byte
		want int
		ok   bool
	}{
		{0x05, 8, true},
		{0x06, 8, true},
		{0x85, 5, true},
		{0x86, 5, true},
		{0x03, 0, false},
		{0x10, 0, false},
	}

	for _, tc := range cases {
		got, err := expectedResponseLength(tc.fc)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("fc 0x%02x: got %d, %v; want %d", tc.fc, got, err, tc.want)
		}
		if !tc.ok && !errors.Is(err, ErrUnexpectedFunction) {
			t.Fatalf("fc 0x%02x: expected ErrUnexpectedFunction, got %v", tc.fc, err)
		}
	}
}

func TestSerialCharTime(t *testing.T) {
	// 11 bits at 9600bps: 1.145833ms
	if d := serialCharTime(9600); d != time.Duration(1145833)*time.Nanosecond {
		t.Fatalf("unexpected char time %v", d)
	}
	if d := serialCharTime(0); d != 0 {
		t.Fatalf("expected 0 for invalid baud, got %v", d)
	}
}

func TestRTUTransporterInterFrameDelay(t *testing.T) {
	rt := newRTUTransporter(nil, time.Second, 9600)
	// 3.5 chars at 9600bps
	if rt.t35 != (serialCharTime(9600)*35)/10 {
		t.Fatalf("unexpected t3.5 %v", rt.t35)
	}

	rt = newRTUTransporter(nil, time.Second, 38400)
	if rt.t35 != 1750*time.Microsecond {
		t.Fatalf("unexpected t3.5 above 19200: %v", rt.t35)
	}
}

func TestRTUTransporter_ShortRequest(t *testing.T) {
	rt := newRTUTransporter(nil, time.Second, 9600)
	if _, err := rt.Send([]byte{0x01}); err == nil {
		t.Fatalf("expected error for short request, got nil")
	}
}

func TestRTUTransporter_ShortWrite(t *testing.T) {
	link := &shortLink{}
	rt := newRTUTransporter(link, time.Second, 9600)

	_, err := rt.Send([]byte{0x01, 0x06, 0x00, 0x0a, 0x00, 0x2a, 0x00, 0x00})
	if !errors.Is(err, ErrShortWrite) {
		t.Fatalf("expected ErrShortWrite, got %v", err)
	}
	if link.reads != 0 {
		t.Fatalf("no response should be awaited after a short write, got %d reads", link.reads)
	}
}
