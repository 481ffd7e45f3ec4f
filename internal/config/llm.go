package config

import (
	"time"

	"analyst/internal/llm"
)

// LLMConfig configures the language model gateway.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	Endpoint string `yaml:"endpoint"` // full chat completions URL (openai)
	APIKey   string `yaml:"api_key,omitempty"`
	Timeout  string `yaml:"timeout"`
}

// ModelsConfig names the model each role uses.
type ModelsConfig struct {
	Router      string `yaml:"router"`
	Planner     string `yaml:"planner"`
	Synthesizer string `yaml:"synthesizer"`
}

// GetLLMTimeout returns the per-call timeout.
func (c *Config) GetLLMTimeout() time.Duration {
	if d, err := time.ParseDuration(c.LLM.Timeout); err == nil && d > 0 {
		return d
	}
	return llm.DefaultTimeout
}

// ToLLM converts to the gateway configuration.
func (c *Config) ToLLM() llm.Config {
	return llm.Config{
		Provider: c.LLM.Provider,
		Endpoint: c.LLM.Endpoint,
		APIKey:   c.LLM.APIKey,
		Timeout:  c.GetLLMTimeout(),
	}
}
