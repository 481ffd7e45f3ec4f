package config

import (
	"time"

	"analyst/internal/sandbox"
)

// SandboxConfig bounds script execution.
type SandboxConfig struct {
	Timeout         string   `yaml:"timeout"`
	MaxOutputBytes  int      `yaml:"max_output_bytes"`
	MaxConcurrent   int      `yaml:"max_concurrent"` // across all sessions
	AllowedPackages []string `yaml:"allowed_packages"`
}

// GetExecutionTimeout returns the per-script timeout.
func (c *Config) GetExecutionTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Sandbox.Timeout); err == nil && d > 0 {
		return d
	}
	return sandbox.DefaultConfig().Timeout
}

// ToSandbox converts to the sandbox configuration.
func (c *Config) ToSandbox() sandbox.Config {
	return sandbox.Config{
		Timeout:         c.GetExecutionTimeout(),
		MaxOutputBytes:  c.Sandbox.MaxOutputBytes,
		MaxConcurrent:   c.Sandbox.MaxConcurrent,
		AllowedPackages: c.Sandbox.AllowedPackages,
	}
}
