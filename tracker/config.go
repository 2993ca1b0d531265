package tracker

import (
	"time"

	"github.com/rs/zerolog"
)

// Config holds the settings for a Tracker. Build it with NewConfigBuilder.
type Config struct {
	dialer          Dialer
	token           []byte
	commandTimeout  time.Duration
	downloadTimeout time.Duration
	downloadParams  []string
	probe           bool
	logger          zerolog.Logger
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	if len(c.token) == 0 {
		return ErrNoToken
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.commandTimeout == 0 {
		c.commandTimeout = 5 * time.Second
	}
	if c.downloadTimeout == 0 {
		c.downloadTimeout = time.Minute
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder with a no-op logger and default timeouts.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: Config{logger: zerolog.Nop()}}
}

// WithDialer sets how the transport is opened. Required.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithToken sets the device password sent with every command. Required.
func (b *ConfigBuilder) WithToken(token string) *ConfigBuilder {
	b.config.token = []byte(token)
	return b
}

// WithCommandTimeout bounds single-line operations whose context carries no
// deadline.
func (b *ConfigBuilder) WithCommandTimeout(d time.Duration) *ConfigBuilder {
	b.config.commandTimeout = d
	return b
}

// WithDownloadTimeout bounds multi-line transfers whose context carries no
// deadline.
func (b *ConfigBuilder) WithDownloadTimeout(d time.Duration) *ConfigBuilder {
	b.config.downloadTimeout = d
	return b
}

// WithDownloadParams sets the parameters sent with DLREC. Firmware revisions
// differ: some expect none, others "0","0".
func (b *ConfigBuilder) WithDownloadParams(params ...string) *ConfigBuilder {
	b.config.downloadParams = append([]string(nil), params...)
	return b
}

// WithProbe makes New query the firmware version once to check the device
// answers with the configured token.
func (b *ConfigBuilder) WithProbe(probe bool) *ConfigBuilder {
	b.config.probe = probe
	return b
}

// WithLogger sets the logger used for wire tracing. The token never appears
// in log output.
func (b *ConfigBuilder) WithLogger(l zerolog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
