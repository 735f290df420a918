package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tagsBody = `{"models":[
 {"name":"llama3:8b","details":{"family":"llama","parameter_size":"8.0B","quantization_level":"Q4_0"}},
 {"name":"qwen3:latest","details":{"family":"qwen3","parameter_size":"8.2B"}}
]}`

func TestModelDiscovery_DiscoverOllama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(tagsBody))
	}))
	defer srv.Close()

	models, err := NewModelDiscovery(testLogger()).DiscoverOllama(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, domain.ModelInfo{Name: "llama3:8b", Family: "llama", ParameterSize: "8.0B", QuantizationLevel: "Q4_0"}, models[0])
}

func TestModelDiscovery_CheckModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(tagsBody))
	}))
	defer srv.Close()

	d := NewModelDiscovery(testLogger())
	ctx := context.Background()
	assert.True(t, d.CheckModel(ctx, srv.URL, "llama3:8b"))
	assert.True(t, d.CheckModel(ctx, srv.URL, "qwen3"))
	assert.False(t, d.CheckModel(ctx, srv.URL, "deepseek-coder:6.7b"))
}

func TestModelDiscovery_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := NewModelDiscovery(testLogger())
	_, err := d.DiscoverOllama(context.Background(), srv.URL)
	assert.EqualError(t, err, "ollama returned 404")
	assert.False(t, d.CheckModel(context.Background(), srv.URL, "llama3:8b"))
}
