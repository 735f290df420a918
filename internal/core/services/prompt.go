package services

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/manthysbr/localagent/internal/core/domain"
)

const reactPromptTemplate = `Answer the following questions as best you can. You have access to these tools:

{{.Tools}}

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [{{.ToolNames}}]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Begin!

Question: {{.Input}}
Thought: {{.Scratchpad}}`

// PromptBuilder renders the ReAct grammar with the registered tools interpolated.
type PromptBuilder struct {
	tmpl      *template.Template
	tools     string
	toolNames string
}

type promptData struct {
	Tools      string
	ToolNames  string
	Input      string
	Scratchpad string
}

// NewPromptBuilder prepares the template for the given registry. The tool
// listing is rendered once; the registry is fixed for the builder's lifetime.
func NewPromptBuilder(tools *domain.ToolRegistry) (*PromptBuilder, error) {
	tmpl, err := template.New("react").Parse(reactPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &PromptBuilder{
		tmpl:      tmpl,
		tools:     tools.FormatToolsForPrompt(),
		toolNames: strings.Join(tools.Names(), ", "),
	}, nil
}

// Build renders the full prompt for a question and the scratchpad accumulated so far.
func (b *PromptBuilder) Build(question, scratchpad string) (string, error) {
	var sb strings.Builder
	err := b.tmpl.Execute(&sb, promptData{
		Tools:      b.tools,
		ToolNames:  b.toolNames,
		Input:      question,
		Scratchpad: scratchpad,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}
