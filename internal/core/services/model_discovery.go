package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/manthysbr/localagent/internal/core/domain"
)

// ModelDiscovery lists the models installed in a local Ollama instance.
type ModelDiscovery struct {
	logger *slog.Logger
	client *http.Client
}

// NewModelDiscovery creates a new model discovery service.
func NewModelDiscovery(logger *slog.Logger) *ModelDiscovery {
	return &ModelDiscovery{
		logger: logger,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// ollamaTagsResponse is the Ollama /api/tags JSON structure.
type ollamaTagsResponse struct {
	Models []struct {
		Name    string `json:"name"`
		Details struct {
			ParameterSize     string `json:"parameter_size"`
			QuantizationLevel string `json:"quantization_level"`
			Family            string `json:"family"`
		} `json:"details"`
	} `json:"models"`
}

// DiscoverOllama queries the Ollama instance at baseURL for installed models.
func (d *ModelDiscovery) DiscoverOllama(ctx context.Context, baseURL string) ([]domain.ModelInfo, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama not reachable at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode ollama tags: %w", err)
	}

	models := make([]domain.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, domain.ModelInfo{
			Name:              m.Name,
			Family:            m.Details.Family,
			ParameterSize:     m.Details.ParameterSize,
			QuantizationLevel: m.Details.QuantizationLevel,
		})
	}

	d.logger.Debug("discovered ollama models", "count", len(models), "base_url", baseURL)
	return models, nil
}

// CheckModel logs a warning when model is not installed. Any model name works
// with Ollama, so a missing model is reported, not rejected; the first query
// will fail with Ollama's own error until it is pulled.
func (d *ModelDiscovery) CheckModel(ctx context.Context, baseURL, model string) bool {
	models, err := d.DiscoverOllama(ctx, baseURL)
	if err != nil {
		d.logger.Warn("could not list ollama models", "error", err)
		return false
	}
	if hasModel(models, model) {
		return true
	}
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	d.logger.Warn("configured model is not installed; run `ollama pull` first",
		"model", model, "installed", strings.Join(names, ", "))
	return false
}

// hasModel matches "llama3" against "llama3:latest" the way Ollama resolves tags.
func hasModel(models []domain.ModelInfo, model string) bool {
	want := model
	if !strings.Contains(want, ":") {
		want += ":latest"
	}
	for _, m := range models {
		if m.Name == want || m.Name == model {
			return true
		}
	}
	return false
}
