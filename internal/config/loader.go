package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QAEVAL_"

const maxConfigFileSize = 1024 * 1024 // 1MB

// keys lists every settable key. Environment variables map onto these by
// replacing dots with underscores, so QAEVAL_LLM_ANTHROPIC_API_KEY sets
// llm.anthropic.api_key.
var keys = []string{
	"database.path",
	"tables.qa",
	"tables.verdict",
	"log.level",
	"log.format",
	"output.format",
	"labeler.method",
	"labeler.min_confidence",
	"labeler.categories",
	"llm.provider",
	"llm.anthropic.api_key", "llm.anthropic.model", "llm.anthropic.base_url",
	"llm.openai.api_key", "llm.openai.model", "llm.openai.base_url",
	"llm.gemini.api_key", "llm.gemini.model", "llm.gemini.base_url",
	"llm.openrouter.api_key", "llm.openrouter.model", "llm.openrouter.base_url",
	"llm.timeout",
	"llm.retry.max_attempts",
	"llm.retry.initial_wait",
	"llm.retry.max_wait",
	"llm.retry.multiplier",
}

var envKeys = func() map[string]string {
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[strings.ReplaceAll(k, ".", "_")] = k
	}
	return m
}()

// DefaultPath returns $XDG_CONFIG_HOME/qaeval/config.yaml, falling back to
// ~/.config/qaeval/config.yaml.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "qaeval", "config.yaml"), nil
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment. An empty path uses DefaultPath; a missing file at the
// default path is not an error, but an explicitly given path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	content, err := readConfigFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return nil, err
	default:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envValue maps QAEVAL_SECTION_FIELD to section.field. Unknown variables are
// dropped. Comma-separated lists are split.
func envValue(name, value string) (string, any) {
	key, ok := envKeys[strings.ToLower(strings.TrimPrefix(name, EnvPrefix))]
	if !ok {
		return "", nil
	}
	if key == "labeler.categories" {
		var list []string
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				list = append(list, s)
			}
		}
		return key, list
	}
	return key, value
}
