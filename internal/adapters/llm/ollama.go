package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/manthysbr/localagent/internal/core/domain"
)

// stopSequences keep the model from inventing its own observations.
var stopSequences = []string{"\nObservation:"}

// OllamaProvider implements domain.LLMProvider for a local Ollama instance
type OllamaProvider struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

// Ensure OllamaProvider implements LLMProvider
var _ domain.LLMProvider = (*OllamaProvider)(nil)

func NewOllamaProvider(baseURL, model string, temperature float64, timeout time.Duration) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:8b"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaProvider{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

type generateOptions struct {
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Model returns the model name sent with every request.
func (p *OllamaProvider) Model() string { return p.model }

// GenerateText sends one non-streaming completion request.
func (p *OllamaProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: p.temperature,
			Stop:        stopSequences,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", genResp.Error)
	}

	return genResp.Response, nil
}
