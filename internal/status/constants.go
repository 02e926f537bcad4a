// internal/status/constants.go
package status

// Outcome codes and process exit codes.
// These values define the tool's contract and MUST NOT be configurable.

// Code is the verdict of one port attempt, or of its release step.
type Code uint8

// ---- ATTEMPT VERDICTS ----

// Success means the slave acknowledged the write.
const Success Code = 0

// PortUnavailable means the device could not be opened.
const PortUnavailable Code = 1

// CommunicationError covers write, response, timeout and transport failures.
const CommunicationError Code = 2

// ---- RELEASE VERDICT ----

// DisconnectError means closing the port failed.
// It is reported next to the attempt verdict and never replaces it.
const DisconnectError Code = 3

// ---- EXIT CODES ----

// ExitSuccess is returned for an explicit-port run whose write succeeded.
const ExitSuccess = 0

// ExitFailure is returned for an explicit-port run whose write failed.
const ExitFailure = 1

// ExitAuto is returned for every auto-mode run, whatever the per-port results.
const ExitAuto = 1

// ExitUsage is returned when arguments or configuration are rejected
// before any port is touched.
const ExitUsage = 2
