package llm

import (
	"fmt"
	"strings"
	"time"

	"agentflow/internal/config"
)

// BuiltInProviderNames lists the provider names NewProviderByName accepts.
func BuiltInProviderNames() []string {
	return []string{"anthropic", "openai", "ollama", "lmstudio", "openai-compat", "mock"}
}

// ParseProviderModel parses "provider:model" or just "provider" from a
// flag value. Model will be empty if not specified.
func ParseProviderModel(s string) (string, string, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return "", "", fmt.Errorf("invalid provider format: %q", s)
	}
	provider := strings.TrimSpace(parts[0])
	model := ""
	if len(parts) == 2 {
		model = strings.TrimSpace(parts[1])
	}

	for _, name := range BuiltInProviderNames() {
		if provider == name {
			return provider, model, nil
		}
	}
	return "", "", fmt.Errorf("unknown provider: %s", provider)
}

// NewProvider creates the configured default provider.
// Providers are wrapped with automatic retry for rate limits (429) and
// transient errors; the mock provider is returned bare.
func NewProvider(cfg *config.Config) (Provider, error) {
	return NewProviderByName(cfg, cfg.Provider)
}

// NewProviderByName creates a provider by name from the config.
// Useful for per-command provider overrides.
func NewProviderByName(cfg *config.Config, name string) (Provider, error) {
	switch name {
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("anthropic requires an API key (set ANTHROPIC_API_KEY)")
		}
		provider := NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
		return WrapWithRetry(provider, DefaultRetryConfig()), nil

	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai requires an API key (set OPENAI_API_KEY)")
		}
		provider := NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		return WrapWithRetry(provider, DefaultRetryConfig()), nil

	case "ollama":
		provider := NewOpenAICompatProvider(cfg.Ollama.BaseURL, cfg.Ollama.APIKey, cfg.Ollama.Model, "Ollama")
		return WrapWithRetry(provider, DefaultRetryConfig()), nil

	case "lmstudio":
		provider := NewOpenAICompatProvider(cfg.LMStudio.BaseURL, cfg.LMStudio.APIKey, cfg.LMStudio.Model, "LM Studio")
		return WrapWithRetry(provider, DefaultRetryConfig()), nil

	case "openai-compat":
		if cfg.OpenAICompat.BaseURL == "" {
			return nil, fmt.Errorf("openai-compat requires base_url")
		}
		provider := NewOpenAICompatProvider(cfg.OpenAICompat.BaseURL, cfg.OpenAICompat.APIKey, cfg.OpenAICompat.Model, "OpenAI-compat")
		return WrapWithRetry(provider, DefaultRetryConfig()), nil

	case "mock":
		delay := time.Duration(cfg.Mock.DelayMS) * time.Millisecond
		return NewMockProvider(cfg.Mock.Model, delay), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
