// internal/writer/modbus/slavetest/slave.go

// Package slavetest provides an in-memory Modbus RTU slave that plugs into a
// session as its link. It is meant for tests.
package slavetest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/modbus-rtu-writer/internal/transport"
)

// Request is one decoded write received by the slave.
type Request struct {
	UnitID   uint8
	Function uint8
	Address  uint16
	Value    uint16
}

// Coil reports the coil state carried by an FC05 request.
func (r Request) Coil() bool {
	return r.Value == 0xFF00
}

// Slave echoes FC05/FC06 requests back, the way a compliant device acknowledges them.
// Zero value is ready to use and answers every unit id.
type Slave struct {
	// UnitID, when non-zero, makes the slave ignore frames for other units.
	UnitID uint8
	// Silent drops every request without answering (timeout).
	Silent bool
	// Exception, when non-zero, answers with this exception code.
	Exception uint8
	// Garble flips a CRC bit in every answer.
	Garble bool

	ConfigureErr error
	WriteErr     error
	CloseErr     error

	Requests   []Request
	Coils      map[uint16]bool
	Registers  map[uint16]uint16
	Line       *transport.LineConfig
	Closes     int
	Configures int

	rx     []byte
	closed bool
}

// ---- Link ----

func (s *Slave) SetDeadline(time.Time) error {
	return nil
}

func (s *Slave) Configure(c transport.LineConfig) error {
	s.Configures++
	if s.ConfigureErr != nil {
		return s.ConfigureErr
	}
	s.Line = &c
	return nil
}

func (s *Slave) Read(p []byte) (int, error) {
	if s.closed {
		return 0, transport.ErrClosed
	}
	if len(s.rx) == 0 {
		return 0, transport.ErrRequestTimedOut
	}
	n := copy(p, s.rx)
	s.rx = s.rx[n:]
	return n, nil
}

func (s *Slave) Write(p []byte) (int, error) {
	if s.closed {
		return 0, transport.ErrClosed
	}
	if s.WriteErr != nil {
		return 0, s.WriteErr
	}

	if err := s.handle(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close counts every call. The first one releases the slave.
func (s *Slave) Close() error {
	s.Closes++
	if s.CloseErr != nil {
		return s.CloseErr
	}
	s.closed = true
	return nil
}

// Closed reports whether the slave has been released.
func (s *Slave) Closed() bool {
	return s.closed
}

// ---- protocol ----

func (s *Slave) handle(frame []byte) error {
	if len(frame) != 8 {
		return fmt.Errorf("slavetest: unexpected frame length %d", len(frame))
	}
	if CRC(frame[:6]) != binary.LittleEndian.Uint16(frame[6:]) {
		return errors.New("slavetest: bad request crc")
	}

	req := Request{
		UnitID:   frame[0],
		Function: frame[1],
		Address:  binary.BigEndian.Uint16(frame[2:4]),
		Value:    binary.BigEndian.Uint16(frame[4:6]),
	}

	if s.UnitID != 0 && req.UnitID != s.UnitID {
		return nil
	}

	s.Requests = append(s.Requests, req)

	if s.Silent {
		return nil
	}

	if s.Exception != 0 {
		s.reply([]byte{req.UnitID, req.Function | 0x80, s.Exception})
		return nil
	}

	switch req.Function {
	case 0x05:
		if req.Value != 0xFF00 && req.Value != 0x0000 {
			s.reply([]byte{req.UnitID, req.Function | 0x80, 0x03})
			return nil
		}
		if s.Coils == nil {
			s.Coils = make(map[uint16]bool)
		}
		s.Coils[req.Address] = req.Coil()
	case 0x06:
		if s.Registers == nil {
			s.Registers = make(map[uint16]uint16)
		}
		s.Registers[req.Address] = req.Value
	default:
		s.reply([]byte{req.UnitID, req.Function | 0x80, 0x01})
		return nil
	}

	s.reply(append([]byte(nil), frame[:6]...))
	return nil
}

func (s *Slave) reply(body []byte) {
	crc := CRC(body)
	if s.Garble {
		crc ^= 0x0001
	}
	out := binary.LittleEndian.AppendUint16(body, crc)
	s.rx = append(s.rx, out...)
}

// CRC computes the Modbus RTU CRC-16 of b.
func CRC(b []byte) uint16 {
	crc := uint16(0xffff)
	for _, v := range b {
		crc ^= uint16(v)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xa001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
