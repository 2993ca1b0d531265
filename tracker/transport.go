package tracker

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=tracker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaudRate is the line speed the tracker expects before the first
// command is sent.
const DefaultBaudRate = 15200

// Transport represents an established, bidirectional byte stream to a tracker.
//
// A Transport is assumed to be already connected and configured (line speed
// included). It provides the low-level I/O primitives required to send frames
// and receive response lines. Typical implementations include serial ports
// or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a tracker.
//
// Dialer abstracts how the connection is created and is intended to be used
// during Tracker construction only. Once a Transport is obtained, the Dialer
// is no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It
	// should respect cancellation provided by the context. Dial returns an
	// error if the transport cannot be established.
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Transport, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// SerialDialer opens a tracker over a serial port using go.bug.st/serial.
//
// If Mode is nil the port is opened at BaudRate (DefaultBaudRate when zero),
// 8 data bits, no parity, one stop bit.
type SerialDialer struct {
	PortName string
	BaudRate int
	Mode     *serial.Mode
}

// Dial opens the serial port. The line speed is applied at open time, so the
// returned Transport is ready for the first command.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("tracker: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("tracker: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		mode = &serial.Mode{
			BaudRate: baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("tracker: open %s at %d baud: %w", d.PortName, mode.BaudRate, err)
	}
	return port, nil
}
