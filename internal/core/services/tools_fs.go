package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/stoewer/go-strcase"
)

// FileRequest is the JSON input accepted by the file_operations tool.
type FileRequest struct {
	// Operation is either "read" or "write".
	Operation string `json:"operation" jsonschema:"enum=read,enum=write"`
	// Path of the file to read or write.
	Path string `json:"path"`
	// Content to write. Only used by write; defaults to empty.
	Content string `json:"content,omitempty"`
}

// ensurePathIsSafe strictly validates that the requested path is within root.
// Both are made absolute first, so a relative root such as "." works.
func ensurePathIsSafe(root, requestedPath string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve files root %q: %w", root, err)
	}
	fullPath := requestedPath
	if !filepath.IsAbs(requestedPath) {
		fullPath = filepath.Join(absRoot, requestedPath)
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", requestedPath, err)
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("security violation: path %q is outside the files root", requestedPath)
	}
	return absPath, nil
}

// fileRequestSchema renders the FileRequest JSON schema for the prompt.
func fileRequestSchema() string {
	r := &jsonschema.Reflector{
		KeyNamer:                  strcase.SnakeCase,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	schema := r.Reflect(&FileRequest{})
	schema.Version = ""
	raw, err := json.Marshal(schema)
	if err != nil {
		return ""
	}
	return string(raw)
}

// NewFileTool creates the file_operations tool. With an empty root, paths are
// only normalized: the tool trusts its single local user and may touch any
// file the process can. A non-empty root confines relative and absolute paths to it.
func NewFileTool(root string) *domain.Tool {
	return &domain.Tool{
		Name: "file_operations",
		Description: "Useful for reading from or writing to files. " +
			"Input should be a JSON string with 'operation' ('read' or 'write'), " +
			"'path', and 'content' (for write operations). " +
			`Example: {"operation": "read", "path": "example.txt"} or ` +
			`{"operation": "write", "path": "example.txt", "content": "Hello world"}`,
		Schema:        fileRequestSchema(),
		ExecutionType: domain.ExecNative,
		Execute: func(ctx context.Context, input string) (string, error) {
			var req FileRequest
			if err := json.Unmarshal([]byte(strings.TrimSpace(input)), &req); err != nil {
				return "", errors.New("Error: Input must be a valid JSON string with the required parameters.")
			}
			if req.Path == "" {
				return "", errors.New("Error: A file path must be provided.")
			}

			path := filepath.Clean(req.Path)
			if root != "" {
				safe, err := ensurePathIsSafe(root, req.Path)
				if err != nil {
					return "", err
				}
				path = safe
			}

			switch strings.ToLower(strings.TrimSpace(req.Operation)) {
			case "read":
				return readFile(path)
			case "write":
				return writeFile(path, req.Content)
			default:
				return "", errors.New("Error: Invalid operation. Use 'read' or 'write'.")
			}
		},
	}
}

func readFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("Error: The file at '%s' does not exist.", path)
		}
		return "", fmt.Errorf("Error performing file operation: %w", err)
	}
	return string(content), nil
}

func writeFile(path, content string) (string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("Error performing file operation: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("Error performing file operation: %w", err)
	}
	return fmt.Sprintf("Successfully wrote to '%s'.", path), nil
}
