package azmount

import "fmt"

// ValidationError reports a caller-supplied value outside the range the
// protocol documents for its field. Nothing is written to the mount.
type ValidationError struct {
	Field string
	Value interface{}
	Range string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("azmount: %s %v outside %s", e.Field, e.Value, e.Range)
}

// ProtocolError reports a reply that does not match the expected shape for
// its command: wrong length, non-digit content, or an unrecognized status
// code.
type ProtocolError struct {
	Command string
	Reply   string
	Reason  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("azmount: %s reply %q: %s", e.Command, e.Reply, e.Reason)
}

// StateError reports an operation invoked out of sequence, such as a move
// commanded before both axes have been staged.
type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("azmount: %s: %s", e.Op, e.Reason)
}

// RejectedMoveError means the mount acknowledged the move command but
// declined to execute it, typically because the target altitude is below the
// configured limit. The wire exchange itself succeeded and no slew occurs.
type RejectedMoveError struct {
	Alt, Az float64 // degrees, as commanded
}

func (e *RejectedMoveError) Error() string {
	return fmt.Sprintf("azmount: mount rejected move to alt %.4f az %.4f (below altitude limit)", e.Alt, e.Az)
}

// RefusedTargetError means the mount answered '0' to a :Sa or :Sz staging
// command: the single-axis target was declined before any move was
// committed, and that axis remains unstaged.
type RefusedTargetError struct {
	Axis    string // "altitude" or "azimuth"
	Degrees float64
}

func (e *RefusedTargetError) Error() string {
	return fmt.Sprintf("azmount: mount refused staged %s %.4f", e.Axis, e.Degrees)
}

// HandshakeError reports a version or model mismatch during initialization.
// It is fatal: no motion command may be issued to an unrecognized mount.
type HandshakeError struct {
	Field string
	Got   string
	Want  string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("azmount: handshake %s mismatch: got %q, want %q", e.Field, e.Got, e.Want)
}

// UnsupportedOperationError marks commands whose encoding is ambiguous
// between V2 and V3 of the command set and therefore deliberately not
// implemented.
type UnsupportedOperationError struct {
	Op string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("azmount: %s is not supported (command set V2/V3 ambiguity)", e.Op)
}

// TimeoutError reports that a caller-supplied deadline expired while waiting
// for the mount to reach a state. The last commanded motion is unaffected;
// stopping it is a separate, explicit Stop call.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("azmount: %s: deadline exceeded while polling", e.Op)
}

// TransportError wraps a serial-level failure: read timeout, short read, or
// I/O error. The core never retries these.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("azmount: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
