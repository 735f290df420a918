package providers

import (
	"fmt"
	"strings"

	"github.com/manthysbr/localagent/internal/adapters/llm"
	"github.com/manthysbr/localagent/internal/core/domain"
)

// Build creates the LLM provider from app configuration.
// It hides local/remote provider selection from callers.
func Build(config *domain.AppConfig) (domain.LLMProvider, error) {
	if config == nil {
		config = domain.DefaultConfig()
	}
	c := config.LLM

	switch strings.ToLower(strings.TrimSpace(c.Provider)) {
	case "", "ollama":
		return llm.NewOllamaProvider(
			normalizeOllamaBaseURL(c.BaseURL),
			strings.TrimSpace(c.Model),
			c.Temperature,
			c.Timeout.Std(),
		), nil
	case "openai":
		return llm.NewOpenAIProvider(
			strings.TrimSpace(c.BaseURL),
			strings.TrimSpace(c.APIKey),
			strings.TrimSpace(c.Model),
			c.Temperature,
			c.Timeout.Std(),
		), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", c.Provider)
	}
}

func normalizeOllamaBaseURL(baseURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if strings.HasSuffix(trimmed, "/v1") {
		return strings.TrimSuffix(trimmed, "/v1")
	}
	return trimmed
}

// ModelOf reports the model name a built provider sends, after the adapter
// applied its defaults. Providers that do not expose it report "".
func ModelOf(p domain.LLMProvider) string {
	if named, ok := p.(interface{ Model() string }); ok {
		return named.Model()
	}
	return ""
}
