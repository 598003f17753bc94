package logging

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level  zapcore.Level `koanf:"level"`
	Format string        `koanf:"format"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
	}
}

// Validate checks the config for unsupported values.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("unsupported log format %q (want json or console)", c.Format)
	}
	if c.Level < TraceLevel || c.Level > zapcore.FatalLevel {
		return fmt.Errorf("unsupported log level %v", c.Level)
	}
	return nil
}
