package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"analyst/internal/agent"
	"analyst/internal/dataset"
	"analyst/internal/sandbox"
)

// DefaultPath is where the CLI looks for configuration.
const DefaultPath = "analyst.yaml"

// Config holds all analyst configuration.
type Config struct {
	// Language model access
	LLM LLMConfig `yaml:"llm"`

	// Model per role
	Models ModelsConfig `yaml:"models"`

	// Retry loop and prompting
	Agent AgentConfig `yaml:"agent"`

	// Script execution limits
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Dataset ingestion
	Dataset DatasetConfig `yaml:"dataset"`

	// Transcript persistence
	Store StoreConfig `yaml:"store"`

	// Session lifecycle
	Session SessionConfig `yaml:"session"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// AgentConfig configures the query loop.
type AgentConfig struct {
	MaxRetries      int     `yaml:"max_retries"`
	HistoryLength   int     `yaml:"history_length"`
	RouterTemp      float64 `yaml:"router_temperature"`
	PlannerTemp     float64 `yaml:"planner_temperature"`
	SynthesizerTemp float64 `yaml:"synthesizer_temperature"`
	AnswerLanguage  string  `yaml:"answer_language"`
}

// DatasetConfig configures CSV ingestion.
type DatasetConfig struct {
	Path         string            `yaml:"path"`
	Columns      map[string]string `yaml:"columns"`       // source header -> canonical name
	KeepUnmapped bool              `yaml:"keep_unmapped"` // keep headers not in Columns
}

// StoreConfig configures the SQLite transcript store.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SessionConfig configures session lifetime.
type SessionConfig struct {
	TTL string `yaml:"ttl"` // idle time before a session is dropped from memory
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	def := agent.DefaultConfig()
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Endpoint: "http://localhost:1234/v1/chat/completions",
			Timeout:  "2m",
		},
		Models: ModelsConfig{
			Router:      def.Models.Router,
			Planner:     def.Models.Planner,
			Synthesizer: def.Models.Synthesizer,
		},
		Agent: AgentConfig{
			MaxRetries:      def.MaxRetries,
			HistoryLength:   def.HistoryLength,
			RouterTemp:      def.Temperatures.Router,
			PlannerTemp:     def.Temperatures.Planner,
			SynthesizerTemp: def.Temperatures.Synthesizer,
			AnswerLanguage:  def.AnswerLanguage,
		},
		Sandbox: SandboxConfig{
			Timeout:         "30s",
			MaxOutputBytes:  64 * 1024,
			MaxConcurrent:   4,
			AllowedPackages: sandbox.DefaultAllowedPackages(),
		},
		Dataset: DatasetConfig{
			Path:    "tweets.csv",
			Columns: dataset.DefaultColumnMap(),
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    filepath.Join(".analyst", "transcripts.db"),
		},
		Session: SessionConfig{
			TTL: "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if ep := os.Getenv("ANALYST_LLM_ENDPOINT"); ep != "" {
		c.LLM.Endpoint = ep
	}
	// Provider keys, lowest priority first
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && (c.LLM.Provider == "" || c.LLM.Provider == "openai") {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if key := os.Getenv("ANALYST_LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}

	if path := os.Getenv("ANALYST_DATA"); path != "" {
		c.Dataset.Path = path
	}
	if path := os.Getenv("ANALYST_DB"); path != "" {
		c.Store.Path = path
	}
}

// GetSessionTTL returns the session idle TTL, 0 meaning sessions never expire.
func (c *Config) GetSessionTTL() time.Duration {
	if c.Session.TTL == "" || c.Session.TTL == "0" {
		return 0
	}
	if d, err := time.ParseDuration(c.Session.TTL); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "", "openai":
	case "gemini":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key (or GEMINI_API_KEY) is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unknown llm.provider %q (supported: openai, gemini)", c.LLM.Provider)
	}

	if c.Models.Router == "" || c.Models.Planner == "" || c.Models.Synthesizer == "" {
		return fmt.Errorf("models.router, models.planner and models.synthesizer must all be set")
	}
	if c.Agent.MaxRetries < 1 {
		return fmt.Errorf("agent.max_retries must be at least 1, got %d", c.Agent.MaxRetries)
	}
	if c.Agent.HistoryLength < 0 {
		return fmt.Errorf("agent.history_length must not be negative, got %d", c.Agent.HistoryLength)
	}
	for _, t := range []float64{c.Agent.RouterTemp, c.Agent.PlannerTemp, c.Agent.SynthesizerTemp} {
		if t < 0 || t > 2 {
			return fmt.Errorf("temperatures must be within [0, 2], got %v", t)
		}
	}
	for _, pkg := range c.Sandbox.AllowedPackages {
		if sandbox.Blocked(pkg) {
			return fmt.Errorf("sandbox.allowed_packages: %q can never be allowed", pkg)
		}
	}
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when the store is enabled")
	}

	for field, value := range map[string]string{
		"llm.timeout":     c.LLM.Timeout,
		"sandbox.timeout": c.Sandbox.Timeout,
		"session.ttl":     c.Session.TTL,
	} {
		if value == "" || value == "0" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	return nil
}

// ToAgent converts to the agent's configuration.
func (c *Config) ToAgent() agent.Config {
	return agent.Config{
		Models: agent.Models{
			Router:      c.Models.Router,
			Planner:     c.Models.Planner,
			Synthesizer: c.Models.Synthesizer,
		},
		Temperatures: agent.Temperatures{
			Router:      c.Agent.RouterTemp,
			Planner:     c.Agent.PlannerTemp,
			Synthesizer: c.Agent.SynthesizerTemp,
		},
		MaxRetries:     c.Agent.MaxRetries,
		HistoryLength:  c.Agent.HistoryLength,
		AnswerLanguage: c.Agent.AnswerLanguage,
		Packages:       c.Sandbox.AllowedPackages,
	}
}

// ToLoadOptions converts to dataset ingestion options.
func (c *Config) ToLoadOptions() dataset.LoadOptions {
	return dataset.LoadOptions{Columns: c.Dataset.Columns, KeepUnmapped: c.Dataset.KeepUnmapped}
}
