package tracker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"i4.energy/across/tk5000/wp"
)

// Tracker is a session with a single TK5000-family device. It owns the
// transport and the device password for its whole lifetime and keeps no
// response state between operations.
//
// The protocol carries no request identifiers, so operations are strictly
// sequential: concurrent callers are serialized and each operation is one
// frame out and one logical response in. A single reader goroutine splits the
// transport stream into lines; operations wait for those lines with a
// deadline, so a silent device produces a *TransportError instead of blocking
// forever.
//
// When an operation gives up before its response has been read (timeout,
// cancellation, unparsable line), the session is marked stale and the next
// operation first discards any buffered input to get back onto a line
// boundary.
type Tracker struct {
	// mu serializes operations on the transport
	mu sync.Mutex
	// transport provides the physical connection to the device
	transport Transport
	// config contains token, timeouts and logger
	config Config
	logger zerolog.Logger

	// lines receives every line read from the transport, blank ones
	// included
	lines chan []byte
	// readDone is closed when the reader goroutine stops; readErr is
	// set before that and tells why
	readDone chan struct{}
	readErr  error
	// quit stops the reader goroutine on Close
	quit chan struct{}

	// stale is set when the device may still send part of an abandoned
	// response. Guarded by mu.
	stale  bool
	closed atomic.Bool
}

// New dials the device and starts the session reader. With probing enabled
// the firmware version is queried once, which checks both the line speed and
// the token.
//
// Returns an error if the transport cannot be opened or the probe fails.
func New(ctx context.Context, config Config) (*Tracker, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	t := &Tracker{
		transport: transport,
		config:    config,
		logger:    config.logger,
		lines:     make(chan []byte, 64),
		readDone:  make(chan struct{}),
		quit:      make(chan struct{}),
	}
	go t.readLoop()

	if config.probe {
		version, err := t.Version(ctx)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("probe tracker: %w", err)
		}
		t.logger.Info().Str("version", version).Msg("tracker responding")
	}

	return t, nil
}

// Close stops the reader and closes the transport. After Close the Tracker
// cannot be reused.
func (t *Tracker) Close() error {
	if t.transport == nil {
		return ErrNotInitialized
	}
	if !t.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	close(t.quit)
	return t.transport.Close()
}

// readLoop is the only goroutine reading from the transport.
func (t *Tracker) readLoop() {
	defer close(t.readDone)

	scanner := bufio.NewScanner(t.transport)
	scanner.Buffer(make([]byte, 0, 512), wp.MaxLineLength)
	scanner.Split(wp.Splitter)

	for scanner.Scan() {
		line := bytes.Clone(scanner.Bytes())
		select {
		case t.lines <- line:
		case <-t.quit:
			t.readErr = ErrAlreadyClosed
			return
		}
	}

	err := scanner.Err()
	switch {
	case errors.Is(err, bufio.ErrTooLong):
		err = ErrLineTooLong
	case err == nil:
		err = io.EOF
	}
	t.readErr = err
}

func (t *Tracker) ready() error {
	if t.transport == nil {
		return ErrNotInitialized
	}
	if t.closed.Load() {
		return ErrAlreadyClosed
	}
	return nil
}

// inputResetter is implemented by transports that can discard bytes already
// received but not yet read, such as serial.Port.
type inputResetter interface {
	ResetInputBuffer() error
}

// withTimeout applies d when ctx has no deadline of its own.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok && d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

// resync discards input left over from an abandoned operation.
func (t *Tracker) resync() {
	if !t.stale {
		return
	}
	dropped := 0
drain:
	for {
		select {
		case <-t.lines:
			dropped++
		default:
			break drain
		}
	}
	if r, ok := t.transport.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			t.logger.Warn().Err(err).Msg("reset input buffer")
		}
	}
	t.logger.Debug().Int("dropped", dropped).Msg("discarded stale input")
	t.stale = false
}

func (t *Tracker) send(cmd wp.Command) error {
	frame, err := cmd.Frame(t.config.token)
	if err != nil {
		return err
	}
	t.logger.Debug().Str("frame", wp.Redact(frame)).Msg("send")
	if _, err := t.transport.Write(frame); err != nil {
		t.stale = true
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// readLine waits for the next line from the reader goroutine.
func (t *Tracker) readLine(ctx context.Context) ([]byte, error) {
	select {
	case line := <-t.lines:
		t.logger.Debug().Bytes("line", line).Msg("received")
		return line, nil
	case <-t.readDone:
		// Lines queued before the stream ended are still valid.
		select {
		case line := <-t.lines:
			return line, nil
		default:
		}
		return nil, t.readErr
	case <-ctx.Done():
		t.stale = true
		return nil, ctx.Err()
	}
}

// readStatus waits for the first non-blank line of a response. Blank lines
// between responses carry nothing; inside a transfer body they are kept.
func (t *Tracker) readStatus(ctx context.Context) ([]byte, error) {
	for {
		line, err := t.readLine(ctx)
		if err != nil || len(line) > 0 {
			return line, err
		}
	}
}

func (t *Tracker) readError(err error) error {
	if t.closed.Load() {
		return ErrAlreadyClosed
	}
	return &TransportError{Op: "read", Err: err}
}

// expect turns a classified response into captures or a typed error.
func (t *Tracker) expect(cmd wp.Command, out wp.Outcome) ([][]byte, error) {
	t.logger.Debug().Str("command", cmd.Name()).Stringer("outcome", out.Kind).Msg("classified")

	switch out.Kind {
	case wp.KindSuccess:
		return out.Captures, nil
	case wp.KindFailure:
		return nil, &DeviceError{
			Command: cmd.Name(),
			Code:    out.Code,
			Message: wp.Message(out.Code),
		}
	default:
		t.stale = true
		return nil, &wp.ProtocolError{Raw: out.Raw}
	}
}

// exec performs a single-line round trip.
func (t *Tracker) exec(ctx context.Context, cmd wp.Command) ([][]byte, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, cancel := withTimeout(ctx, t.config.commandTimeout)
	defer cancel()

	t.resync()
	if err := t.send(cmd); err != nil {
		return nil, err
	}

	line, err := t.readStatus(ctx)
	if err != nil {
		return nil, t.readError(err)
	}
	return t.expect(cmd, wp.Classify(line))
}

// transfer performs a multi-line round trip. The status line is checked
// before the body is read, so a device error does not wait for a sentinel
// that will never come.
func (t *Tracker) transfer(ctx context.Context, cmd wp.Command, sentinel []byte) (wp.MultiLineResult, error) {
	var res wp.MultiLineResult
	if err := t.ready(); err != nil {
		return res, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, cancel := withTimeout(ctx, t.config.downloadTimeout)
	defer cancel()

	t.resync()
	if err := t.send(cmd); err != nil {
		return res, err
	}

	status, err := t.readStatus(ctx)
	if err != nil {
		return res, t.readError(err)
	}
	res.Status = wp.Classify(status)
	if _, err := t.expect(cmd, res.Status); err != nil {
		return res, err
	}

	readLine := func() ([]byte, error) { return t.readLine(ctx) }
	res.Body, res.Terminator, err = wp.CollectBody(readLine, sentinel)
	if err != nil {
		var pe *wp.ProtocolError
		if errors.As(err, &pe) {
			t.stale = true
			return res, err
		}
		return res, t.readError(err)
	}

	t.logger.Debug().Str("command", cmd.Name()).Int("lines", len(res.Body)).Msg("transfer complete")
	return res, nil
}
