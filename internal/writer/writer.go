// internal/writer/writer.go
package writer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus-rtu-writer/internal/status"
	"github.com/tamzrod/modbus-rtu-writer/internal/transport"
)

// Dispatcher runs one write against one explicit port or against every
// eligible port on the host. Attempts are strictly sequential and isolated.
type Dispatcher struct {
	newSession SessionFactory
	listPorts  PortLister
	logger     *zap.Logger
}

func New(newSession SessionFactory, listPorts PortLister, logger *zap.Logger) *Dispatcher {
	if listPorts == nil {
		listPorts = transport.ListPorts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		newSession: newSession,
		listPorts:  listPorts,
		logger:     logger,
	}
}

// Run performs the write and returns the process exit code with the per-port report.
//
// Explicit: exactly one attempt, exit code follows its verdict.
// Auto: every eligible port is attempted, no early exit, and the exit code is
// always status.ExitAuto. Per-port results are only in the log and the report.
func (d *Dispatcher) Run(req WriteRequest, sel PortSelector) (int, SessionReport) {
	if !sel.IsAuto() {
		out := d.attempt(req, sel.Port())
		return status.ExitCode(out.Status), SessionReport{Outcomes: []PortOutcome{out}}
	}

	report := SessionReport{Auto: true}

	d.logger.Info("port not defined, running autodetect")

	cands, err := d.listPorts()
	if err != nil {
		d.logger.Error("port enumeration failed", zap.Error(err))
		return status.ExitAuto, report
	}

	eligible := transport.Eligible(cands)
	d.logger.Info("ports detected",
		zap.Int("found", len(cands)),
		zap.Int("eligible", len(eligible)),
	)

	for _, c := range eligible {
		report.Outcomes = append(report.Outcomes, d.attempt(req, c.Name))
	}

	d.logger.Info("autodetect finished",
		zap.Int("attempted", len(report.Outcomes)),
		zap.Int("succeeded", report.Succeeded()),
	)

	return status.ExitAuto, report
}

// attempt runs the single-port procedure. Every error, and any panic, is
// turned into the returned outcome. The session is closed on every path.
func (d *Dispatcher) attempt(req WriteRequest, port string) (out PortOutcome) {
	log := d.logger.With(zap.String("port", port))
	out.Port = port

	s := d.newSession(port)
	wrote := false
	released := false

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("writer: attempt aborted: %v", r)
			if wrote {
				// the verdict is already in; only the release is affected
				out.Release = status.DisconnectError
				out.ReleaseErr = err
			} else {
				out.Status = status.CommunicationError
				out.Err = err
			}
		}

		// second, best-effort close when the primary one did not run or failed
		if !released {
			if err := closeSession(s); err != nil {
				out.Release = status.DisconnectError
				out.ReleaseErr = err
				log.Warn("error while disconnecting", zap.Error(err))
			}
		}

		if out.Status.OK() {
			log.Info("write succeeded")
		} else {
			log.Error("write failed",
				zap.Stringer("status", out.Status),
				zap.Error(out.Err),
			)
		}
	}()

	if err := s.Connect(); err != nil {
		out.Status = classify(err)
		out.Err = err
		return out
	}

	s.SetUnitID(req.UnitID)

	log.Info("sending data",
		zap.Stringer("type", req.Kind),
		zap.Uint16("address", req.Address),
		zap.Uint8("unit", req.UnitID),
		zap.Int32("value", req.Value),
	)

	if err := write(s, req); err != nil {
		out.Status = status.CommunicationError
		out.Err = err
		return out
	}

	out.Status = status.Success
	wrote = true

	if err := closeSession(s); err != nil {
		out.Release = status.DisconnectError
		out.ReleaseErr = err
		log.Warn("error while disconnecting", zap.Error(err))
		return out
	}
	released = true

	return out
}

// closeSession closes s and turns a panic inside Close into an error.
func closeSession(s Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("writer: close aborted: %v", r)
		}
	}()
	return s.Close()
}

func write(s Session, req WriteRequest) error {
	switch req.Kind {
	case Coil:
		return s.WriteCoil(req.Address, req.CoilState())
	case Register:
		return s.WriteRegister(req.Address, req.RegisterValue())
	default:
		return fmt.Errorf("writer: unsupported input type %v", req.Kind)
	}
}

func classify(err error) status.Code {
	if errors.Is(err, transport.ErrPortUnavailable) {
		return status.PortUnavailable
	}
	return status.CommunicationError
}
