package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes " + name,
		Execute: func(ctx context.Context, input string) (string, error) {
			return input, nil
		},
	}
}

func TestToolRegistry_PreservesOrder(t *testing.T) {
	r := NewToolRegistry()
	for _, name := range []string{"web_search", "python_repl", "file_operations"} {
		require.NoError(t, r.Register(echoTool(name)))
	}

	assert.Equal(t, []string{"web_search", "python_repl", "file_operations"}, r.Names())
	assert.Equal(t, 3, r.Len())

	tools := r.ListTools()
	require.Len(t, tools, 3)
	assert.Equal(t, "file_operations", tools[2].Name)

	assert.Equal(t,
		"web_search: echoes web_search\npython_repl: echoes python_repl\nfile_operations: echoes file_operations",
		r.FormatToolsForPrompt())
}

func TestToolRegistry_RejectsInvalidTools(t *testing.T) {
	r := NewToolRegistry()
	require.NoError(t, r.Register(echoTool("web_search")))

	err := r.Register(echoTool("web_search"))
	assert.ErrorIs(t, err, ErrDuplicateTool)

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&Tool{Name: ""}))
	assert.Error(t, r.Register(&Tool{Name: "no_exec"}))
	assert.Equal(t, 1, r.Len())
}

func TestToolRegistry_SchemaInPrompt(t *testing.T) {
	r := NewToolRegistry()
	tool := echoTool("file_operations")
	tool.Schema = `{"type":"object"}`
	require.NoError(t, r.Register(tool))

	assert.Equal(t, "file_operations: echoes file_operations\n  Input schema: {\"type\":\"object\"}", r.FormatToolsForPrompt())
}

func TestTool_Run(t *testing.T) {
	tests := []struct {
		name string
		exec ToolExecutor
		want string
	}{
		{
			name: "success",
			exec: func(ctx context.Context, input string) (string, error) { return "ok: " + input, nil },
			want: "ok: hi",
		},
		{
			name: "error gets prefixed",
			exec: func(ctx context.Context, input string) (string, error) { return "", errors.New("boom") },
			want: "Error: boom",
		},
		{
			name: "already prefixed error kept",
			exec: func(ctx context.Context, input string) (string, error) {
				return "", errors.New("Error: Received status code 500")
			},
			want: "Error: Received status code 500",
		},
		{
			name: "panic recovered",
			exec: func(ctx context.Context, input string) (string, error) { panic("nil map") },
			want: "Error: tool t panicked: nil map",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := &Tool{Name: "t", Execute: tt.exec}
			assert.Equal(t, tt.want, tool.Run(context.Background(), "hi"))
		})
	}
}

func TestToolRegistry_Suggest(t *testing.T) {
	r := NewToolRegistry()
	for _, name := range []string{"web_search", "python_repl", "file_operations"} {
		require.NoError(t, r.Register(echoTool(name)))
	}

	assert.Equal(t, "web_search", r.Suggest("search"))
	assert.Equal(t, "python_repl", r.Suggest("python"))
	assert.Equal(t, "file_operations", r.Suggest("file_read"))
	assert.Equal(t, "web_search", r.Suggest("web_serch"))
	assert.Equal(t, "", r.Suggest("calculator"))

	_, ok := r.GetTool("search")
	assert.False(t, ok)
	_, err := r.Lookup("search")
	assert.ErrorIs(t, err, ErrToolNotFound)
	tool, err := r.Lookup("web_search")
	require.NoError(t, err)
	assert.Equal(t, "web_search", tool.Name)
}
