// internal/status/encode.go
package status

import "fmt"

// String returns the label used in log lines.
func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case PortUnavailable:
		return "port unavailable"
	case CommunicationError:
		return "communication error"
	case DisconnectError:
		return "disconnect error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// OK reports whether the code is a success.
func (c Code) OK() bool {
	return c == Success
}

// ExitCode converts the verdict of a single explicit attempt into a process exit code.
// Auto-mode runs do not go through here: they always exit with ExitAuto.
func ExitCode(c Code) int {
	if c == Success {
		return ExitSuccess
	}
	return ExitFailure
}
