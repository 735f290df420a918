package services

import (
	"testing"

	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestParseReActOutput(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		want       domain.ParseResult
	}{
		{
			name:       "action",
			completion: "I should look this up.\nAction: web_search\nAction Input: weather in New York",
			want: domain.ParseResult{
				Kind:    domain.ParseAction,
				Thought: "I should look this up.",
				Tool:    "web_search",
				Input:   "weather in New York",
			},
		},
		{
			name:       "action with quoted multi-line input",
			completion: "Thought: compute it\nAction: python_repl\nAction Input: \"x = 2\nprint(x + 2)\"",
			want: domain.ParseResult{
				Kind:    domain.ParseAction,
				Thought: "compute it",
				Tool:    "python_repl",
				Input:   "x = 2\nprint(x + 2)",
			},
		},
		{
			name:       "hallucinated observation is dropped",
			completion: "Action: web_search\nAction Input: go release\nObservation: Go 9 was released\nThought: I now know the final answer\nFinal Answer: Go 9",
			want: domain.ParseResult{
				Kind:  domain.ParseAction,
				Tool:  "web_search",
				Input: "go release",
			},
		},
		{
			name:       "final answer",
			completion: "I now know the final answer\nFinal Answer: 42",
			want: domain.ParseResult{
				Kind:    domain.ParseFinalAnswer,
				Thought: "I now know the final answer",
				Answer:  "42",
			},
		},
		{
			name:       "final answer keeps multiple lines",
			completion: "Final Answer: line one\nline two",
			want: domain.ParseResult{
				Kind:   domain.ParseFinalAnswer,
				Answer: "line one\nline two",
			},
		},
		{
			name:       "both answer and action",
			completion: "Action: web_search\nAction Input: x\nFinal Answer: y",
			want: domain.ParseResult{
				Kind:   domain.ParseUnparsable,
				Reason: errBothAnswerAndAction,
			},
		},
		{
			name:       "missing action",
			completion: "Let me think about this some more.",
			want: domain.ParseResult{
				Kind:    domain.ParseUnparsable,
				Thought: "Let me think about this some more.",
				Reason:  errMissingAction,
			},
		},
		{
			name:       "missing action input",
			completion: "Thought: search\nAction: web_search",
			want: domain.ParseResult{
				Kind:    domain.ParseUnparsable,
				Thought: "search",
				Reason:  errMissingActionInput,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseReActOutput(tt.completion))
		})
	}
}

func TestTrimHallucinatedObservation(t *testing.T) {
	assert.Equal(t, "Action: a\nAction Input: b", trimHallucinatedObservation("Action: a\nAction Input: b\nObservation: fake\n"))
	assert.Equal(t, "Final Answer: done", trimHallucinatedObservation("Final Answer: done\n\n"))
}

func TestCleanToolName(t *testing.T) {
	tests := map[string]string{
		"web_search":           "web_search",
		"`web_search`":         "web_search",
		"[python_repl]":        "python_repl",
		" \"file_operations\"": "file_operations",
		"**web_search**":       "web_search",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanToolName(in), in)
	}
}
