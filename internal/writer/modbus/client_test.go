// internal/writer/modbus/client_test.go
package modbus

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tamzrod/modbus-rtu-writer/internal/transport"
	"github.com/tamzrod/modbus-rtu-writer/internal/writer/modbus/slavetest"
)

func newTestClient(t *testing.T, slave *slavetest.Slave) *Client {
	t.Helper()
	return New(Config{
		Port:    "COM_TEST",
		Timeout: 50 * time.Millisecond,
		Open: func(name string) (Link, error) {
			if name != "COM_TEST" {
				t.Fatalf("unexpected port %q", name)
			}
			return slave, nil
		},
	})
}

// ---- tests ----

func TestClient_WriteRegister(t *testing.T) {
	slave := &slavetest.Slave{}
	c := newTestClient(t, slave)
	c.SetUnitID(1)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() err=%v", err)
	}
	if slave.Line == nil || *slave.Line != transport.RTULine {
		t.Fatalf("expected RTU line to be applied, got %+v", slave.Line)
	}

	if err := c.WriteRegister(10, 42); err != nil {
		t.Fatalf("WriteRegister() err=%v", err)
	}

	if len(slave.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(slave.Requests))
	}
	req := slave.Requests[0]
	if req.UnitID != 1 || req.Function != 0x06 || req.Address != 10 || req.Value != 42 {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestClient_WriteCoil(t *testing.T) {
	slave := &slavetest.Slave{}
	c := newTestClient(t, slave)
	c.SetUnitID(7)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() err=%v", err)
	}

	if err := c.WriteCoil(3, true); err != nil {
		t.Fatalf("WriteCoil(true) err=%v", err)
	}
	if err := c.WriteCoil(4, false); err != nil {
		t.Fatalf("WriteCoil(false) err=%v", err)
	}

	if len(slave.Requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(slave.Requests))
	}
	if r := slave.Requests[0]; r.UnitID != 7 || r.Function != 0x05 || r.Value != 0xFF00 {
		t.Fatalf("unexpected request %+v", r)
	}
	if r := slave.Requests[1]; r.Function != 0x05 || r.Value != 0x0000 {
		t.Fatalf("unexpected request %+v", r)
	}
	if !slave.Coils[3] || slave.Coils[4] {
		t.Fatalf("unexpected coil state %v", slave.Coils)
	}
}

func TestClient_WriteBeforeConnect(t *testing.T) {
	c := newTestClient(t, &slavetest.Slave{})

	if err := c.WriteRegister(1, 1); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := c.WriteCoil(1, true); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClient_ConnectFailureIsPortUnavailable(t *testing.T) {
	c := New(Config{
		Port: "COM_MISSING",
		Open: func(string) (Link, error) { return nil, errors.New("no such file or directory") },
	})

	if err := c.Connect(); !errors.Is(err, transport.ErrPortUnavailable) {
		t.Fatalf("expected ErrPortUnavailable, got %v", err)
	}
	// nothing was opened: closing is a no-op
	if err := c.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
}

func TestClient_ConfigureFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	slave := &slavetest.Slave{ConfigureErr: errors.New("stop bits not supported")}

	c := New(Config{
		Port:    "COM_TEST",
		Timeout: 50 * time.Millisecond,
		Open:    func(string) (Link, error) { return slave, nil },
		Logger:  zap.New(core),
	})

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() err=%v", err)
	}
	if err := c.WriteRegister(0, 1); err != nil {
		t.Fatalf("WriteRegister() err=%v", err)
	}

	if logs.FilterMessageSnippet("line configuration rejected").Len() != 1 {
		t.Fatalf("expected one configuration warning, got %v", logs.All())
	}
}

func TestClient_Timeout(t *testing.T) {
	slave := &slavetest.Slave{Silent: true}
	c := newTestClient(t, slave)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() err=%v", err)
	}

	err := c.WriteRegister(10, 42)
	if !errors.Is(err, transport.ErrRequestTimedOut) {
		t.Fatalf("expected ErrRequestTimedOut, got %v", err)
	}
}

func TestClient_Exception(t *testing.T) {
	slave := &slavetest.Slave{Exception: 0x02}
	c := newTestClient(t, slave)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() err=%v", err)
	}

	err := c.WriteRegister(10, 42)
	if err == nil {
		t.Fatalf("expected exception error, got nil")
	}
}

func TestClient_BadCRC(t *testing.T) {
	slave := &slavetest.Slave{Garble: true}
	c := newTestClient(t, slave)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() err=%v", err)
	}
	if err := c.WriteCoil(1, true); err == nil {
		t.Fatalf("expected crc error, got nil")
	}
}

func TestClient_WrongUnit(t *testing.T) {
	// a slave at unit 9 ignores requests for unit 1
	slave := &slavetest.Slave{UnitID: 9}
	c := newTestClient(t, slave)
	c.SetUnitID(1)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() err=%v", err)
	}
	if err := c.WriteRegister(1, 1); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestClient_Close(t *testing.T) {
	slave := &slavetest.Slave{}
	c := newTestClient(t, slave)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() err=%v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() err=%v", err)
	}
	if slave.Closes != 1 || !slave.Closed() {
		t.Fatalf("expected 1 link close, got %d", slave.Closes)
	}
}

func TestClient_Port(t *testing.T) {
	c := newTestClient(t, &slavetest.Slave{})
	if c.Port() != "COM_TEST" {
		t.Fatalf("expected COM_TEST, got %q", c.Port())
	}
}

func TestClient_CloseFailureAllowsRetry(t *testing.T) {
	slave := &slavetest.Slave{CloseErr: errors.New("input/output error")}
	c := newTestClient(t, slave)

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() err=%v", err)
	}

	if err := c.Close(); !errors.Is(err, transport.ErrDisconnect) {
		t.Fatalf("expected ErrDisconnect, got %v", err)
	}
	if slave.Closed() {
		t.Fatalf("failed close must leave the link held")
	}

	slave.CloseErr = nil
	if err := c.Close(); err != nil {
		t.Fatalf("retry Close() err=%v", err)
	}
	if slave.Closes != 2 {
		t.Fatalf("expected 2 link closes, got %d", slave.Closes)
	}
}

func TestCoilValue(t *testing.T) {
	if CoilValue(true) != 0xFF00 || CoilValue(false) != 0x0000 {
		t.Fatalf("unexpected coil payloads")
	}
}
