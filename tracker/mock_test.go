package tracker

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

// MockSequenceBuilder scripts request/response exchanges on a MockTransport.
// The Tracker's reader goroutine starts reading before anything is sent, so
// every scripted read blocks until the write it answers has happened.
type MockSequenceBuilder struct {
	transport *MockTransport
	closed    chan struct{}
}

func NewMockSequence(transport *MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		closed:    make(chan struct{}),
	}
}

// Exchange expects frame to be written and answers it with response.
func (b *MockSequenceBuilder) Exchange(frame, response string) *MockSequenceBuilder {
	written := make(chan struct{})
	b.transport.EXPECT().Write([]byte(frame)).DoAndReturn(func(p []byte) (int, error) {
		close(written)
		return len(p), nil
	})
	b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		<-written
		return copy(p, response), nil
	})
	return b
}

// Version scripts a successful firmware version query.
func (b *MockSequenceBuilder) Version(token, version string) *MockSequenceBuilder {
	return b.Exchange("$WP+VER="+token+"\r", "$OK:VER="+version+"\r\n")
}

// HangUp makes the next read report end of stream.
func (b *MockSequenceBuilder) HangUp() {
	b.transport.EXPECT().Read(gomock.Any()).Return(0, io.EOF)
	b.transport.EXPECT().Close().Return(nil)
}

// Idle makes further reads block until the transport is closed.
func (b *MockSequenceBuilder) Idle() {
	b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		<-b.closed
		return 0, io.EOF
	}).AnyTimes()
	b.transport.EXPECT().Close().DoAndReturn(func() error {
		close(b.closed)
		return nil
	})
}

// newTestTracker builds a Tracker with token "0000" on top of transport.
func newTestTracker(t *testing.T, transport Transport, configure ...func(*ConfigBuilder)) *Tracker {
	t.Helper()

	b := NewConfigBuilder().
		WithToken("0000").
		WithDialer(DialerFunc(func(context.Context) (Transport, error) {
			return transport, nil
		}))
	for _, c := range configure {
		c(b)
	}

	config, err := b.Build()
	require.NoError(t, err)

	tr, err := New(context.Background(), config)
	require.NoError(t, err)
	return tr
}

// closeTracker closes tr and waits for its reader goroutine to stop, so no
// mock call happens after the test returns.
func closeTracker(t *testing.T, tr *Tracker) {
	t.Helper()
	require.NoError(t, tr.Close())
	<-tr.readDone
}
