package tracker

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when a Tracker is configured without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the device.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNoToken is returned when a Tracker is configured without a password.
	// Every command carries the token, so nothing can be sent without one.
	ErrNoToken = errors.New("no token configured")

	// ErrNotInitialized is returned when an operation is attempted on a
	// Tracker that was not created via New, or whose Dialer returned no
	// transport.
	ErrNotInitialized = errors.New("tracker not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Tracker that has
	// already been closed, or when an operation is attempted after Close.
	ErrAlreadyClosed = errors.New("tracker already closed")

	// ErrLineTooLong is returned when a response line exceeds
	// wp.MaxLineLength.
	//
	// This typically indicates a wrong line speed, unexpected binary data,
	// or a protocol framing error.
	ErrLineTooLong = errors.New("response line too long")
)

// DeviceError is returned when the device answers with $ERR.
type DeviceError struct {
	Command string
	Code    uint
	Message string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("tracker: %s: device error %d: %s", e.Command, e.Code, e.Message)
}

// TransportError wraps a failure of the underlying byte channel: a write or
// read error, a closed stream, or a timeout. After a TransportError the
// session may be out of step with the device.
type TransportError struct {
	Op  string // "write" or "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tracker: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the error was caused by an expired deadline.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// DecodeError reports a position log line that cannot be decoded.
type DecodeError struct {
	Line int // zero-based index in the transfer body
	Raw  []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("tracker: position line %d: want at least 4 fields: %q", e.Line, e.Raw)
}
