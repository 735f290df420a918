package providers

import (
	"context"
	"testing"

	"github.com/manthysbr/localagent/internal/adapters/llm"
	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.LLM.Model = "qwen3:8b"

	p, err := Build(cfg)
	require.NoError(t, err)
	ollama, ok := p.(*llm.OllamaProvider)
	require.True(t, ok)
	assert.Equal(t, "qwen3:8b", ollama.Model())

	cfg.LLM.Provider = "openai"
	cfg.LLM.Model = "gpt-4o-mini"
	p, err = Build(cfg)
	require.NoError(t, err)
	_, ok = p.(*llm.OpenAIProvider)
	assert.True(t, ok)

	cfg.LLM.Provider = "anthropic"
	_, err = Build(cfg)
	assert.Error(t, err)
}

func TestBuild_NilConfigUsesDefaults(t *testing.T) {
	p, err := Build(nil)
	require.NoError(t, err)
	assert.Equal(t, "llama3:8b", p.(*llm.OllamaProvider).Model())
}

func TestNormalizeOllamaBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:11434", normalizeOllamaBaseURL("http://localhost:11434/v1/"))
	assert.Equal(t, "http://localhost:11434", normalizeOllamaBaseURL(" http://localhost:11434/ "))
	assert.Equal(t, "http://gpu-box:11434", normalizeOllamaBaseURL("http://gpu-box:11434"))
}

type anonymousLLM struct{}

func (anonymousLLM) GenerateText(ctx context.Context, prompt string) (string, error) { return "", nil }

func TestModelOf(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.Model = "gpt-4o-mini"
	p, err := Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", ModelOf(p))

	p, err = Build(nil)
	require.NoError(t, err)
	assert.Equal(t, "llama3:8b", ModelOf(p))

	assert.Empty(t, ModelOf(anonymousLLM{}))
}
