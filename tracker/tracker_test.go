package tracker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"i4.energy/across/tk5000/wp"
)

func TestTrackerNew(t *testing.T) {
	t.Run("Initialization Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		mockTransport := NewMockTransport(ctrl)
		mockDialer := NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil)
		NewMockSequence(mockTransport).Idle()

		config, err := NewConfigBuilder().
			WithDialer(mockDialer).
			WithToken("0000").
			Build()
		require.NoError(t, err)

		tr, err := New(context.Background(), config)
		require.NoError(t, err)
		require.NotNil(t, tr)

		closeTracker(t, tr)
	})

	t.Run("Probe queries the version", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		mockTransport := NewMockTransport(ctrl)
		mockDialer := NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil)
		seq := NewMockSequence(mockTransport).Version("1234", "TK5000-2.1")
		seq.Idle()

		config, err := NewConfigBuilder().
			WithDialer(mockDialer).
			WithToken("1234").
			WithProbe(true).
			Build()
		require.NoError(t, err)

		tr, err := New(context.Background(), config)
		require.NoError(t, err)

		closeTracker(t, tr)
	})

	t.Run("Probe failure closes the transport", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		mockTransport := NewMockTransport(ctrl)
		mockDialer := NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil)
		seq := NewMockSequence(mockTransport).Exchange("$WP+VER=9999\r", "$ERR:PWD=1\r\n")
		seq.Idle()

		config, err := NewConfigBuilder().
			WithDialer(mockDialer).
			WithToken("9999").
			WithProbe(true).
			Build()
		require.NoError(t, err)

		tr, err := New(context.Background(), config)
		assert.Nil(t, tr)

		var de *DeviceError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, uint(1), de.Code)
		assert.Equal(t, "wrong password", de.Message)

		// Close was expected by Idle; wait for it to have happened.
		<-seq.closed
	})

	t.Run("Dialer error", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		mockDialer := NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(nil, errors.New("connection failed"))

		config, err := NewConfigBuilder().WithDialer(mockDialer).WithToken("0000").Build()
		require.NoError(t, err)

		tr, err := New(context.Background(), config)
		assert.Error(t, err)
		assert.Nil(t, tr)
	})

	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		tr, err := New(context.Background(), Config{})
		assert.ErrorIs(t, err, ErrNoDialer)
		assert.Nil(t, tr)
	})

	t.Run("ErrNotInitialized on nil transport", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		mockDialer := NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(nil, nil)

		config, err := NewConfigBuilder().WithDialer(mockDialer).WithToken("0000").Build()
		require.NoError(t, err)

		_, err = New(context.Background(), config)
		assert.ErrorIs(t, err, ErrNotInitialized)
	})
}

func TestTrackerClose(t *testing.T) {
	t.Run("Returns transport error on close failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		mockTransport := NewMockTransport(ctrl)
		closeError := errors.New("transport close failed")
		unblock := make(chan struct{})
		mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			<-unblock
			return 0, io.EOF
		})
		mockTransport.EXPECT().Close().DoAndReturn(func() error {
			close(unblock)
			return closeError
		})

		tr := newTestTracker(t, mockTransport)
		assert.Equal(t, closeError, tr.Close())
		<-tr.readDone
	})

	t.Run("ErrAlreadyClosed on double close", func(t *testing.T) {
		tr := newTestTracker(t, NewTestTransport())

		closeTracker(t, tr)
		assert.Equal(t, ErrAlreadyClosed, tr.Close())
	})

	t.Run("Operations fail after close", func(t *testing.T) {
		tr := newTestTracker(t, NewTestTransport())
		closeTracker(t, tr)

		_, err := tr.Version(context.Background())
		assert.ErrorIs(t, err, ErrAlreadyClosed)
	})

	t.Run("Zero value is not initialized", func(t *testing.T) {
		var tr Tracker
		assert.Equal(t, ErrNotInitialized, tr.Close())

		_, err := tr.Version(context.Background())
		assert.ErrorIs(t, err, ErrNotInitialized)
	})
}

func TestTrackerTimeout(t *testing.T) {
	t.Run("Silent device", func(t *testing.T) {
		transport := NewTestTransport()
		tr := newTestTracker(t, transport, func(b *ConfigBuilder) {
			b.WithCommandTimeout(20 * time.Millisecond)
		})
		defer closeTracker(t, tr)

		start := time.Now()
		_, err := tr.Version(context.Background())

		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.True(t, te.Timeout())
		assert.Equal(t, "read", te.Op)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("Caller deadline wins", func(t *testing.T) {
		transport := NewTestTransport()
		tr := newTestTracker(t, transport, func(b *ConfigBuilder) {
			b.WithCommandTimeout(time.Hour)
		})
		defer closeTracker(t, tr)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := tr.Location(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Cancellation", func(t *testing.T) {
		transport := NewTestTransport()
		tr := newTestTracker(t, transport)
		defer closeTracker(t, tr)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := tr.SOSContact(ctx)
		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.False(t, te.Timeout())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Late reply is discarded before the next command", func(t *testing.T) {
		transport := NewTestTransport()
		tr := newTestTracker(t, transport, func(b *ConfigBuilder) {
			b.WithCommandTimeout(20 * time.Millisecond)
		})
		defer closeTracker(t, tr)

		_, err := tr.Version(context.Background())
		require.Error(t, err)

		// The device finally answers the abandoned request.
		transport.SendData("$OK:VER=late\r\n")
		require.Eventually(t, func() bool { return len(tr.lines) == 1 }, time.Second, time.Millisecond)

		transport.Respond("$WP+VER=0000\r", "$OK:VER=2.1\r\n")
		version, err := tr.Version(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2.1", version)
		assert.Empty(t, tr.lines)
	})
}

func TestTrackerStreamErrors(t *testing.T) {
	t.Run("End of stream", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		mockTransport := NewMockTransport(ctrl)
		mockTransport.EXPECT().Read(gomock.Any()).Return(0, io.EOF)
		mockTransport.EXPECT().Write([]byte("$WP+VER=0000\r")).Return(13, nil)
		mockTransport.EXPECT().Close().Return(nil)

		tr := newTestTracker(t, mockTransport)
		<-tr.readDone

		_, err := tr.Version(context.Background())
		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.ErrorIs(t, err, io.EOF)

		closeTracker(t, tr)
	})

	t.Run("Write failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		mockTransport := NewMockTransport(ctrl)
		writeErr := errors.New("device unplugged")
		mockTransport.EXPECT().Write(gomock.Any()).Return(0, writeErr)
		NewMockSequence(mockTransport).Idle()

		tr := newTestTracker(t, mockTransport)
		defer closeTracker(t, tr)

		_, err := tr.Version(context.Background())
		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "write", te.Op)
		assert.ErrorIs(t, err, writeErr)
		assert.True(t, tr.stale)
	})

	t.Run("Line too long", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		mockTransport := NewMockTransport(ctrl)
		mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, bytes.Repeat([]byte("A"), len(p))), nil
		}).AnyTimes()
		mockTransport.EXPECT().Write(gomock.Any()).Return(13, nil)
		mockTransport.EXPECT().Close().Return(nil)

		tr := newTestTracker(t, mockTransport)
		<-tr.readDone

		_, err := tr.Version(context.Background())
		assert.ErrorIs(t, err, ErrLineTooLong)

		closeTracker(t, tr)
	})
}

func TestTrackerSerializesOperations(t *testing.T) {
	transport := NewTestTransport()
	const callers = 8
	for i := 0; i < callers; i++ {
		transport.Respond("$WP+VER=0000\r", "$OK:VER=2.1\r\n")
	}

	tr := newTestTracker(t, transport)
	defer closeTracker(t, tr)

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			version, err := tr.Version(context.Background())
			if err == nil && version != "2.1" {
				err = errors.New("unexpected version " + version)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, transport.Writes(), callers)
}

func TestTrackerFramingError(t *testing.T) {
	tr := newTestTracker(t, NewTestTransport())
	defer closeTracker(t, tr)

	_, err := tr.Exec(context.Background(), "")
	var fe *wp.FramingError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, wp.ErrEmptyName)
}
