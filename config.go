package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"i4.energy/across/tk5000/tracker"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind-address" toml:"bind-address"`
	// SerialPort is the path to the tracker's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `yaml:"serial-port" toml:"serial-port"`
	// BaudRate is the line speed of the tracker's serial port
	BaudRate int `yaml:"baud-rate" toml:"baud-rate"`
	// Token is the device password sent with every command
	Token string `yaml:"token" toml:"token"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log-level" toml:"log-level"`
	// LogFormat is "json" or "console"
	LogFormat string `yaml:"log-format" toml:"log-format"`
	// CommandTimeout bounds single-line commands
	CommandTimeout time.Duration `yaml:"command-timeout" toml:"command-timeout"`
	// DownloadTimeout bounds a whole position log download
	DownloadTimeout time.Duration `yaml:"download-timeout" toml:"download-timeout"`
	// DlrecParams are the comma-separated download parameters, e.g. "0,0"
	DlrecParams string `yaml:"dlrec-params" toml:"dlrec-params"`
	// ExportName is the strftime pattern for CSV download file names
	ExportName string `yaml:"export-name" toml:"export-name"`
}

// DownloadParams splits DlrecParams into command parameters.
func (c *Config) DownloadParams() []string {
	if c.DlrecParams == "" {
		return nil
	}
	return strings.Split(c.DlrecParams, ",")
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	if config.Token == "" {
		return nil, fmt.Errorf("config: token is required")
	}
	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = tracker.DefaultBaudRate
		c.LogLevel = "info"
		c.LogFormat = "json"
		c.CommandTimeout = 5 * time.Second
		c.DownloadTimeout = time.Minute
		c.ExportName = "positions-%Y%m%d-%H%M%S.csv"
		return nil
	}
}

// WithFile loads configuration from a YAML or TOML file, chosen by
// extension. An empty path is ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := yaml.Unmarshal(data, c); err != nil {
				return fmt.Errorf("config: parse %s: %w", path, err)
			}
		case ".toml":
			if _, err := toml.DecodeFile(path, c); err != nil {
				return fmt.Errorf("config: parse %s: %w", path, err)
			}
		default:
			return fmt.Errorf("config: unsupported file type %q", path)
		}
		return nil
	}
}

// WithEnv loads configuration from TK_* environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		for _, key := range configKeys {
			name := "TK_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
			if v := os.Getenv(name); v != "" {
				if err := c.set(key, v); err != nil {
					return fmt.Errorf("config: %s: %w", name, err)
				}
			}
		}
		return nil
	}
}

// WithFlags loads configuration from command-line flags that were set
// explicitly
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *pflag.Flag) {
			if err != nil {
				return
			}
			if setErr := c.set(f.Name, f.Value.String()); setErr != nil {
				err = fmt.Errorf("config: --%s: %w", f.Name, setErr)
			}
		})
		return err
	}
}

// configKeys lists every key accepted from the environment and flags.
var configKeys = []string{
	"bind-address",
	"serial-port",
	"baud-rate",
	"token",
	"log-level",
	"log-format",
	"command-timeout",
	"download-timeout",
	"dlrec-params",
	"export-name",
}

// set assigns one key. Unknown keys are ignored so unrelated flags can share
// the flag set.
func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "bind-address":
		c.BindAddress = value
	case "serial-port":
		c.SerialPort = value
	case "baud-rate":
		c.BaudRate, err = strconv.Atoi(value)
	case "token":
		c.Token = value
	case "log-level":
		c.LogLevel = value
	case "log-format":
		c.LogFormat = value
	case "command-timeout":
		c.CommandTimeout, err = time.ParseDuration(value)
	case "download-timeout":
		c.DownloadTimeout, err = time.ParseDuration(value)
	case "dlrec-params":
		c.DlrecParams = value
	case "export-name":
		c.ExportName = value
	}
	return err
}
