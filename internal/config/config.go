package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Provider     string             `mapstructure:"provider"`
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Ollama       OllamaConfig       `mapstructure:"ollama"`
	LMStudio     LMStudioConfig     `mapstructure:"lmstudio"`
	OpenAICompat OpenAICompatConfig `mapstructure:"openai-compat"`
	Mock         MockConfig         `mapstructure:"mock"`
	Defaults     DefaultsConfig     `mapstructure:"defaults"`
	Progress     ProgressConfig     `mapstructure:"progress"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// OllamaConfig configures the Ollama provider (OpenAI-compatible)
type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"` // Default: http://localhost:11434/v1
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"` // Optional, Ollama ignores it
}

// LMStudioConfig configures the LM Studio provider (OpenAI-compatible)
type LMStudioConfig struct {
	BaseURL string `mapstructure:"base_url"` // Default: http://localhost:1234/v1
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"` // Optional, LM Studio ignores it
}

// OpenAICompatConfig configures a generic OpenAI-compatible server
type OpenAICompatConfig struct {
	BaseURL string `mapstructure:"base_url"` // Required - no default
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"` // Optional
}

// MockConfig configures the offline mock provider.
type MockConfig struct {
	Model   string `mapstructure:"model"`
	DelayMS int    `mapstructure:"delay_ms"` // Per-word streaming delay
}

// DefaultsConfig carries request defaults applied to every model call.
type DefaultsConfig struct {
	Temperature     float32 `mapstructure:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	MaxTurns        int     `mapstructure:"max_turns"` // Agentic loop turn limit
}

// ProgressConfig controls model-call progress reporting.
type ProgressConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	ShowReasoning bool `mapstructure:"show_reasoning"` // Surface reasoning deltas as they stream
}

func Load() (*Config, error) {
	configPath, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath(".")

	// Set defaults
	viper.SetDefault("provider", "anthropic")
	viper.SetDefault("anthropic.model", "claude-sonnet-4-5")
	viper.SetDefault("openai.model", "gpt-5.2")
	viper.SetDefault("ollama.base_url", "http://localhost:11434/v1")
	viper.SetDefault("lmstudio.base_url", "http://localhost:1234/v1")
	// openai-compat has no base_url default - it's required
	viper.SetDefault("mock.model", "mock-1")
	viper.SetDefault("mock.delay_ms", 0)
	viper.SetDefault("defaults.max_turns", 10)
	viper.SetDefault("progress.enabled", true)

	// Read config file (optional - won't error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	resolveCredentials(&cfg)

	return &cfg, nil
}

// ApplyOverrides applies provider and model overrides to the config.
// If provider is non-empty, it overrides the global provider.
// If model is non-empty, it overrides the model for the active provider.
func (c *Config) ApplyOverrides(provider, model string) {
	if provider != "" {
		c.Provider = provider
	}
	if model != "" {
		switch c.Provider {
		case "anthropic":
			c.Anthropic.Model = model
		case "openai":
			c.OpenAI.Model = model
		case "ollama":
			c.Ollama.Model = model
		case "lmstudio":
			c.LMStudio.Model = model
		case "openai-compat":
			c.OpenAICompat.Model = model
		case "mock":
			c.Mock.Model = model
		}
	}
}

// resolveCredentials expands env references and falls back to the
// conventional environment variables.
func resolveCredentials(cfg *Config) {
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	if cfg.Anthropic.APIKey == "" {
		cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	cfg.Ollama.APIKey = expandEnv(cfg.Ollama.APIKey)
	if cfg.Ollama.APIKey == "" {
		cfg.Ollama.APIKey = os.Getenv("OLLAMA_API_KEY")
	}
	cfg.Ollama.BaseURL = expandEnv(cfg.Ollama.BaseURL)

	cfg.LMStudio.APIKey = expandEnv(cfg.LMStudio.APIKey)
	cfg.LMStudio.BaseURL = expandEnv(cfg.LMStudio.BaseURL)

	cfg.OpenAICompat.APIKey = expandEnv(cfg.OpenAICompat.APIKey)
	cfg.OpenAICompat.BaseURL = expandEnv(cfg.OpenAICompat.BaseURL)
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns the XDG config directory for agentflow.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "agentflow"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "agentflow"), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes the config to disk
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`provider: %s

anthropic:
  model: %s
  # api_key: defaults to $ANTHROPIC_API_KEY

openai:
  model: %s
  # api_key: defaults to $OPENAI_API_KEY

ollama:
  base_url: %s
  # model: llama3.3

mock:
  model: %s
  # delay_ms: 10

progress:
  enabled: %t
`, cfg.Provider, cfg.Anthropic.Model, cfg.OpenAI.Model, cfg.Ollama.BaseURL, cfg.Mock.Model, cfg.Progress.Enabled)

	return os.WriteFile(path, []byte(content), 0600)
}
