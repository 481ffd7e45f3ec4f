package config

import "analyst/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`   // empty logs to stderr
}

// ToLogging converts to the logging package's configuration.
func (c LoggingConfig) ToLogging() logging.Config {
	return logging.Config{Level: c.Level, Format: c.Format, File: c.File}
}
