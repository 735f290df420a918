package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements domain.LLMProvider using an OpenAI-compatible API.
// Works with: OpenAI, Together AI, vLLM, local Ollama /v1, etc.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	temperature float64
}

// Ensure OpenAIProvider implements LLMProvider
var _ domain.LLMProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI-compatible provider. An empty baseURL
// targets api.openai.com.
func NewOpenAIProvider(baseURL, apiKey, model string, temperature float64, timeout time.Duration) *OpenAIProvider {
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}
	opts := []option.RequestOption{option.WithMaxRetries(1)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	return &OpenAIProvider{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
	}
}

// Model returns the model name sent with every request.
func (p *OpenAIProvider) Model() string { return p.model }

// GenerateText sends the rendered ReAct prompt as a single user message.
func (p *OpenAIProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(p.model),
		Temperature: openai.Float(p.temperature),
		Stop:        openai.ChatCompletionNewParamsStopUnion{OfStringArray: stopSequences},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}
	return completion.Choices[0].Message.Content, nil
}
