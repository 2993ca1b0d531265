package wp

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyName is reported by Encode when the command name is empty.
	ErrEmptyName = errors.New("empty command name")

	// ErrEmptyToken is reported by Encode when the authentication token is
	// empty.
	ErrEmptyToken = errors.New("empty token")

	// ErrInvalidByte is reported by Encode when a field contains a byte that
	// would terminate the frame or move a field boundary.
	ErrInvalidByte = errors.New("invalid byte in command field")

	// ErrUnterminated is wrapped by a ProtocolError when the line source ends
	// before the sentinel line of a multi-line transfer was seen.
	ErrUnterminated = errors.New("multi-line transfer ended without terminator")
)

// FramingError reports a command that cannot be put on the wire. It is a
// local validation failure; nothing has been sent to the device.
type FramingError struct {
	Command string
	Err     error
}

func (e *FramingError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("wp: frame: %v", e.Err)
	}
	return fmt.Sprintf("wp: frame %s: %v", e.Command, e.Err)
}

func (e *FramingError) Unwrap() error { return e.Err }

// ProtocolError reports device output that does not follow the protocol.
// Raw holds the offending line (or the last line seen) so callers can show
// exactly what came over the wire.
type ProtocolError struct {
	Raw []byte
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("wp: unparsable response %q", e.Raw)
	}
	if e.Raw == nil {
		return fmt.Sprintf("wp: %v", e.Err)
	}
	return fmt.Sprintf("wp: %v (last line %q)", e.Err, e.Raw)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
