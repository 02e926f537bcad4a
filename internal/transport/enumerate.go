// internal/transport/enumerate.go
package transport

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Kind classifies a host communication port.
type Kind uint8

const (
	KindSerial Kind = iota
	KindRS485
	KindParallel
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindRS485:
		return "rs485"
	case KindParallel:
		return "parallel"
	default:
		return "other"
	}
}

// Candidate is one port reported by the host.
type Candidate struct {
	Name string
	Kind Kind

	// USB details, when the host reports them.
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Eligible reports whether auto mode should try the port.
func (c Candidate) Eligible() bool {
	return c.Kind == KindSerial || c.Kind == KindRS485
}

// swapped in tests
var (
	detailedPorts = enumerator.GetDetailedPortsList
	plainPorts    = serial.GetPortsList
)

// ListPorts enumerates the host's communication ports in host order.
// When detailed enumeration is unavailable it falls back to the plain name list.
func ListPorts() ([]Candidate, error) {
	details, err := detailedPorts()
	if err == nil {
		out := make([]Candidate, 0, len(details))
		for _, d := range details {
			if d == nil {
				continue
			}
			out = append(out, Candidate{
				Name:         d.Name,
				Kind:         Classify(d.Name),
				IsUSB:        d.IsUSB,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
				Product:      d.Product,
			})
		}
		return out, nil
	}

	names, perr := plainPorts()
	if perr != nil {
		return nil, fmt.Errorf("transport: enumerate ports: %v (detailed: %v)", perr, err)
	}

	out := make([]Candidate, 0, len(names))
	for _, n := range names {
		out = append(out, Candidate{Name: n, Kind: Classify(n)})
	}
	return out, nil
}

// Eligible filters candidates down to serial and rs485 ports, keeping order.
func Eligible(cands []Candidate) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Eligible() {
			out = append(out, c)
		}
	}
	return out
}

// Classify derives a port kind from its device name.
func Classify(name string) Kind {
	base := strings.ToLower(name)
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	switch {
	case base == "":
		return KindOther
	case strings.Contains(base, "485"):
		return KindRS485
	case strings.HasPrefix(base, "lpt"),
		strings.HasPrefix(base, "parport"),
		isIndexed(base, "lp"):
		return KindParallel
	case base == "console", base == "tty", base == "ptmx",
		strings.Contains(strings.ToLower(name), "/pts/"):
		return KindOther
	default:
		return KindSerial
	}
}

// isIndexed reports whether s is prefix followed by one or more digits (lp0, lp12).
func isIndexed(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) || len(s) == len(prefix) {
		return false
	}
	for _, r := range s[len(prefix):] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
