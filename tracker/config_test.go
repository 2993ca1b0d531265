package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		_, err := NewConfigBuilder().WithToken("0000").Build()

		if err != ErrNoDialer {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})

	t.Run("ErrNoToken when no token provided", func(t *testing.T) {
		_, err := NewConfigBuilder().WithDialer(NewTestTransport().Dialer()).Build()

		if err != ErrNoToken {
			t.Errorf("expected ErrNoToken, got: %v", err)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		config, err := NewConfigBuilder().
			WithDialer(NewTestTransport().Dialer()).
			WithToken("123").
			Build()
		require.NoError(t, err)

		assert.Equal(t, 5*time.Second, config.commandTimeout)
		assert.Equal(t, time.Minute, config.downloadTimeout)
		assert.Empty(t, config.downloadParams)
		assert.False(t, config.probe)
		assert.Equal(t, []byte("123"), config.token)
	})

	t.Run("Overrides", func(t *testing.T) {
		params := []string{"0", "0"}
		config, err := NewConfigBuilder().
			WithDialer(NewTestTransport().Dialer()).
			WithToken("0000").
			WithCommandTimeout(time.Second).
			WithDownloadTimeout(2 * time.Minute).
			WithDownloadParams(params...).
			WithProbe(true).
			Build()
		require.NoError(t, err)

		params[0] = "9"
		assert.Equal(t, time.Second, config.commandTimeout)
		assert.Equal(t, 2*time.Minute, config.downloadTimeout)
		assert.Equal(t, []string{"0", "0"}, config.downloadParams)
		assert.True(t, config.probe)
	})
}
