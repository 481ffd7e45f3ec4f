package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ANALYST_LLM_ENDPOINT", "ANALYST_LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "ANALYST_DATA", "ANALYST_DB"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:1234/v1/chat/completions", cfg.LLM.Endpoint)
	assert.Equal(t, "google/gemma-3-12b", cfg.Models.Router)
	assert.Equal(t, "mistralai/codestral-22b-v0.1", cfg.Models.Planner)
	assert.Equal(t, "google/gemma-3-12b", cfg.Models.Synthesizer)
	assert.Equal(t, 3, cfg.Agent.MaxRetries)
	assert.Equal(t, 3, cfg.Agent.HistoryLength)
	assert.Equal(t, "tweets.csv", cfg.Dataset.Path)
	assert.Equal(t, "text", cfg.Dataset.Columns["post.text"])
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "analyst.yaml")

	cfg := DefaultConfig()
	cfg.Models.Planner = "qwen2.5-coder"
	cfg.Agent.MaxRetries = 5
	cfg.Sandbox.Timeout = "10s"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-coder", loaded.Models.Planner)
	assert.Equal(t, 5, loaded.Agent.MaxRetries)
	assert.Equal(t, 10*time.Second, loaded.GetExecutionTimeout())
	assert.Equal(t, cfg, loaded)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "analyst.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  max_retries: 2\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Agent.MaxRetries)
	assert.Equal(t, 3, cfg.Agent.HistoryLength)
	assert.Equal(t, "google/gemma-3-12b", cfg.Models.Router)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyst.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "zai" }},
		{"gemini without key", func(c *Config) { c.LLM.Provider = "gemini"; c.LLM.APIKey = "" }},
		{"missing model", func(c *Config) { c.Models.Planner = "" }},
		{"zero retries", func(c *Config) { c.Agent.MaxRetries = 0 }},
		{"negative history", func(c *Config) { c.Agent.HistoryLength = -1 }},
		{"hot temperature", func(c *Config) { c.Agent.SynthesizerTemp = 3 }},
		{"blocked package", func(c *Config) { c.Sandbox.AllowedPackages = append(c.Sandbox.AllowedPackages, "os") }},
		{"bad duration", func(c *Config) { c.Sandbox.Timeout = "soon" }},
		{"no dataset", func(c *Config) { c.Dataset.Path = "" }},
		{"store without path", func(c *Config) { c.Store.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.Agent.HistoryLength = 0
	cfg.Store.Enabled = false
	cfg.Store.Path = ""
	assert.NoError(t, cfg.Validate())
}

func TestDurationGetters(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2*time.Minute, cfg.GetLLMTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetExecutionTimeout())
	assert.Equal(t, 24*time.Hour, cfg.GetSessionTTL())

	cfg.LLM.Timeout = "garbage"
	cfg.Sandbox.Timeout = "-1s"
	cfg.Session.TTL = "0"
	assert.Equal(t, 2*time.Minute, cfg.GetLLMTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetExecutionTimeout())
	assert.Equal(t, time.Duration(0), cfg.GetSessionTTL())
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agent.AnswerLanguage = "English"

	a := cfg.ToAgent()
	assert.Equal(t, "mistralai/codestral-22b-v0.1", a.Models.Planner)
	assert.Equal(t, 0.3, a.Temperatures.Planner)
	assert.Equal(t, "English", a.AnswerLanguage)
	assert.Equal(t, cfg.Sandbox.AllowedPackages, a.Packages)

	sb := cfg.ToSandbox()
	assert.Equal(t, 30*time.Second, sb.Timeout)
	assert.Equal(t, 4, sb.MaxConcurrent)

	l := cfg.ToLLM()
	assert.Equal(t, cfg.LLM.Endpoint, l.Endpoint)
	assert.Equal(t, 2*time.Minute, l.Timeout)

	assert.Equal(t, "info", cfg.Logging.ToLogging().Level)
	assert.Equal(t, "likes", cfg.ToLoadOptions().Columns["post_metrics.like_count"])
}
