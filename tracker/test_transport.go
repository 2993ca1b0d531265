package tracker

import (
	"context"
	"io"
	"sync"
)

// TestTransport is a test helper that simulates a blocking serial line using
// channels. The Tracker's reader goroutine reads from the transport all the
// time, so reads must block until data is available, like a real serial port.
//
// Replies can be scripted per frame with Respond; they are queued for reading
// as soon as the matching frame is written.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	pending  []byte
	writes   []string
	replies  map[string][]string
	closed   bool
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 64),
		replies:  make(map[string][]string),
	}
}

// Respond scripts the data returned after frame is written. Each call adds
// one reply; repeated writes of the same frame consume them in order.
func (t *TestTransport) Respond(frame string, data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[frame] = append(t.replies[frame], data)
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	frame := string(p)
	t.writes = append(t.writes, frame)
	if queued := t.replies[frame]; len(queued) > 0 {
		t.replies[frame] = queued[1:]
		t.readChan <- []byte(queued[0])
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	if len(t.pending) == 0 {
		data, ok := <-t.readChan
		if !ok {
			return 0, io.EOF
		}
		t.pending = data
	}
	n = copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates unsolicited or late output from the device.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes returns every frame written so far.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

// Dialer returns a Dialer handing out this transport.
func (t *TestTransport) Dialer() Dialer {
	return DialerFunc(func(ctx context.Context) (Transport, error) {
		return t, nil
	})
}
