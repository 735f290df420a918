package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrDuplicateTool = errors.New("tool already registered")
)

// ExecType identifies where a tool does its work.
type ExecType string

const (
	// ExecNative runs in the agent process.
	ExecNative ExecType = "native"
	// ExecDocker runs inside a throwaway Docker container.
	ExecDocker ExecType = "docker"
	// ExecLocal runs as a local subprocess.
	ExecLocal ExecType = "local"
)

// ToolExecutor is the function signature for tool execution.
// Errors are never surfaced to the caller of Run; they become observations.
type ToolExecutor func(ctx context.Context, input string) (string, error)

// Tool represents a named text-in/text-out capability available to the agent
type Tool struct {
	Name        string
	Description string
	// Schema is an optional JSON schema of the expected input, rendered into the prompt.
	Schema        string
	Execute       ToolExecutor
	ExecutionType ExecType
}

// Run executes the tool and always returns an observation string.
// Failures, including panics inside the executor, come back prefixed with "Error: ".
func (t *Tool) Run(ctx context.Context, input string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("Error: tool %s panicked: %v", t.Name, r)
		}
	}()

	res, err := t.Execute(ctx, input)
	if err != nil {
		msg := err.Error()
		if strings.HasPrefix(msg, "Error") {
			return msg
		}
		return "Error: " + msg
	}
	return res
}

// ToolRegistry manages available tools. Registration order is preserved
// because it drives the order tools are listed in the prompt.
type ToolRegistry struct {
	tools map[string]*Tool
	order []string
}

// NewToolRegistry creates a new empty registry
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry
func (r *ToolRegistry) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Execute == nil {
		return fmt.Errorf("tool %s has no executor", tool.Name)
	}
	if _, ok := r.tools[tool.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name)
	}
	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	return nil
}

// GetTool returns a tool by exact name
func (r *ToolRegistry) GetTool(name string) (*Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Lookup is GetTool with an ErrToolNotFound error for unknown names
func (r *ToolRegistry) Lookup(name string) (*Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return tool, nil
}

// ListTools returns all registered tools in registration order
func (r *ToolRegistry) ListTools() []*Tool {
	tools := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Names returns tool names in registration order
func (r *ToolRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports the number of registered tools
func (r *ToolRegistry) Len() int { return len(r.order) }

// Suggest returns the closest registered name to a misspelled one, or "".
// It only hints; the registry never dispatches to a guessed tool.
func (r *ToolRegistry) Suggest(input string) string {
	inputWords := splitToolWords(input)

	bestName := ""
	bestScore := 0
	for _, name := range r.order {
		score := wordOverlapScore(inputWords, splitToolWords(name))
		if score > bestScore {
			bestScore = score
			bestName = name
		} else if score == bestScore && score > 0 {
			if levenshtein(input, name) < levenshtein(input, bestName) {
				bestName = name
			}
		}
	}
	if bestScore >= 1 {
		return bestName
	}

	// No shared words: fall back to edit distance for typos like "web_serch".
	bestDist := -1
	for _, name := range r.order {
		d := levenshtein(strings.ToLower(input), name)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			bestName = name
		}
	}
	if bestDist >= 0 && bestDist <= 2 {
		return bestName
	}
	return ""
}

func splitToolWords(name string) []string {
	parts := []string{}
	for _, p := range strings.Split(strings.ToLower(name), "_") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func wordOverlapScore(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, w := range b {
		set[w] = true
	}
	score := 0
	for _, w := range a {
		if set[w] {
			score++
		}
	}
	return score
}

func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, min(prev[j]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

// FormatToolsForPrompt lists tools as "name: description" in registration order.
// Tools that declare an input schema get it appended on the following line.
func (r *ToolRegistry) FormatToolsForPrompt() string {
	var b strings.Builder
	for i, tool := range r.ListTools() {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", tool.Name, tool.Description)
		if tool.Schema != "" {
			fmt.Fprintf(&b, "\n  Input schema: %s", tool.Schema)
		}
	}
	return b.String()
}
