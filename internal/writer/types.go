// internal/writer/types.go
package writer

import (
	"fmt"
	"strings"

	"github.com/tamzrod/modbus-rtu-writer/internal/status"
	"github.com/tamzrod/modbus-rtu-writer/internal/transport"
)

// Kind selects the Modbus object a request writes to.
type Kind uint8

const (
	Coil Kind = iota
	Register
)

func (k Kind) String() string {
	switch k {
	case Coil:
		return "Coil"
	case Register:
		return "Register"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind accepts "Coil" or "Register", case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "coil":
		return Coil, nil
	case "register":
		return Register, nil
	default:
		return 0, fmt.Errorf("writer: unknown input type %q (want Coil or Register)", s)
	}
}

// WriteRequest is one validated write. It is never mutated.
type WriteRequest struct {
	Address uint16
	Kind    Kind
	UnitID  uint8
	Value   int32
}

// CoilState is the coil payload: any nonzero value switches the coil on.
func (r WriteRequest) CoilState() bool {
	return r.Value != 0
}

// RegisterValue is the register payload: the low 16 bits of Value.
func (r WriteRequest) RegisterValue() uint16 {
	return uint16(r.Value)
}

// PortSelector is either one explicit port or auto mode.
type PortSelector struct {
	port string
}

// Explicit selects a single named port. An empty name selects auto mode.
func Explicit(name string) PortSelector {
	return PortSelector{port: name}
}

// Auto selects every eligible port on the host.
func Auto() PortSelector {
	return PortSelector{}
}

func (s PortSelector) IsAuto() bool {
	return s.port == ""
}

func (s PortSelector) Port() string {
	return s.port
}

// PortOutcome is the result of one attempt.
// Status is the write verdict. Release reports the close step separately and
// never overrides Status.
type PortOutcome struct {
	Port   string
	Status status.Code
	Err    error

	Release    status.Code
	ReleaseErr error
}

// SessionReport holds one outcome per attempted port, in attempt order.
type SessionReport struct {
	Auto     bool
	Outcomes []PortOutcome
}

// Succeeded returns the number of successful attempts.
func (r SessionReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status.OK() {
			n++
		}
	}
	return n
}

// ---- collaborators ----

// Session is one Modbus RTU attempt on one port.
type Session interface {
	Connect() error
	SetUnitID(id uint8)
	WriteCoil(addr uint16, on bool) error
	WriteRegister(addr uint16, value uint16) error
	Close() error
}

// SessionFactory creates a fresh, unconnected session. ONE attempt per call.
type SessionFactory func(port string) Session

// PortLister enumerates host ports.
type PortLister func() ([]transport.Candidate, error)
