// Package config loads qaeval settings from defaults, an optional YAML file
// and QAEVAL_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sabaio/qaeval/internal/llm"
)

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Tables   TablesConfig   `koanf:"tables"`
	Log      LogConfig      `koanf:"log"`
	Output   OutputConfig   `koanf:"output"`
	Labeler  LabelerConfig  `koanf:"labeler"`
	LLM      LLMConfig      `koanf:"llm"`
}

// DatabaseConfig locates the SQLite file. An empty path means the default
// data directory.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// TablesConfig names the record tables.
type TablesConfig struct {
	QA      string `koanf:"qa"`
	Verdict string `koanf:"verdict"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // console or json
}

// OutputConfig configures report rendering.
type OutputConfig struct {
	Format string `koanf:"format"` // text, json or yaml
}

// LabelerConfig configures category auto-labeling.
type LabelerConfig struct {
	Method        string   `koanf:"method"` // similarity or llm
	MinConfidence float64  `koanf:"min_confidence"`
	Categories    []string `koanf:"categories"`
}

// LLMConfig configures the provider used by the llm labeler.
type LLMConfig struct {
	Provider   string         `koanf:"provider"`
	Anthropic  ProviderConfig `koanf:"anthropic"`
	OpenAI     ProviderConfig `koanf:"openai"`
	Gemini     ProviderConfig `koanf:"gemini"`
	OpenRouter ProviderConfig `koanf:"openrouter"`
	Timeout    time.Duration  `koanf:"timeout"`
	Retry      RetryConfig    `koanf:"retry"`
}

// ProviderConfig holds per-provider credentials and model selection.
type ProviderConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// RetryConfig configures LLM retries.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	InitialWait time.Duration `koanf:"initial_wait"`
	MaxWait     time.Duration `koanf:"max_wait"`
	Multiplier  float64       `koanf:"multiplier"`
}

// Default returns the built-in configuration.
func Default() Config {
	l := llm.DefaultConfig()
	return Config{
		Tables: TablesConfig{QA: "qa_table", Verdict: "verdict_table"},
		Log:    LogConfig{Level: "warn", Format: "console"},
		Output: OutputConfig{Format: "text"},
		Labeler: LabelerConfig{
			Method:        "similarity",
			MinConfidence: 0.5,
		},
		LLM: LLMConfig{
			Provider:   l.Provider,
			Anthropic:  ProviderConfig{Model: l.Anthropic.Model},
			OpenAI:     ProviderConfig{Model: l.OpenAI.Model},
			Gemini:     ProviderConfig{Model: l.Gemini.Model},
			OpenRouter: ProviderConfig{Model: l.OpenRouter.Model},
			Timeout:    l.Timeout,
			Retry: RetryConfig{
				MaxAttempts: l.Retry.MaxAttempts,
				InitialWait: l.Retry.InitialWait,
				MaxWait:     l.Retry.MaxWait,
				Multiplier:  l.Retry.Multiplier,
			},
		},
	}
}

var (
	logLevels      = []string{"debug", "info", "warn", "error"}
	logFormats     = []string{"console", "json"}
	outputFormats  = []string{"text", "json", "yaml"}
	labelerMethods = []string{"similarity", "llm"}
)

// Validate checks enumerated settings and ranges. Provider credentials are
// checked separately by LLMProvider since only the llm labeler needs them.
func (c Config) Validate() error {
	checks := []struct {
		key, value string
		allowed    []string
	}{
		{"log.level", c.Log.Level, logLevels},
		{"log.format", c.Log.Format, logFormats},
		{"output.format", c.Output.Format, outputFormats},
		{"labeler.method", c.Labeler.Method, labelerMethods},
	}
	for _, ch := range checks {
		if !contains(ch.allowed, ch.value) {
			return fmt.Errorf("%s: invalid value %q (want one of %s)", ch.key, ch.value, strings.Join(ch.allowed, ", "))
		}
	}

	if c.Labeler.MinConfidence < 0 || c.Labeler.MinConfidence > 1 {
		return fmt.Errorf("labeler.min_confidence: %v out of range [0,1]", c.Labeler.MinConfidence)
	}
	if c.Tables.QA == "" || c.Tables.Verdict == "" {
		return fmt.Errorf("tables: table names must not be empty")
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout: must not be negative")
	}
	return nil
}

// LLMProvider converts the llm section to the provider layer's Config,
// filling missing API keys from the vendors' standard environment variables.
func (c Config) LLMProvider() llm.Config {
	l := c.LLM
	return llm.Config{
		Provider:   l.Provider,
		Anthropic:  llm.AnthropicConfig{APIKey: l.Anthropic.APIKey, Model: l.Anthropic.Model, BaseURL: l.Anthropic.BaseURL},
		OpenAI:     llm.OpenAIConfig{APIKey: l.OpenAI.APIKey, Model: l.OpenAI.Model, BaseURL: l.OpenAI.BaseURL},
		Gemini:     llm.GeminiConfig{APIKey: l.Gemini.APIKey, Model: l.Gemini.Model, BaseURL: l.Gemini.BaseURL},
		OpenRouter: llm.OpenRouterConfig{APIKey: l.OpenRouter.APIKey, Model: l.OpenRouter.Model, BaseURL: l.OpenRouter.BaseURL},
		Timeout:    l.Timeout,
		Retry: llm.RetryConfig{
			MaxAttempts: l.Retry.MaxAttempts,
			InitialWait: l.Retry.InitialWait,
			MaxWait:     l.Retry.MaxWait,
			Multiplier:  l.Retry.Multiplier,
		},
	}.WithStandardKeys()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
