package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/manthysbr/localagent/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAgent struct {
	mock.Mock
}

func (m *mockAgent) Run(ctx context.Context, question string, opts ...services.RunOption) (*domain.AgentResponse, error) {
	args := m.Called(ctx, question)
	resp, _ := args.Get(0).(*domain.AgentResponse)
	return resp, args.Error(1)
}

func runREPL(t *testing.T, agent Agent, input string, opts Options) string {
	t.Helper()
	var out bytes.Buffer
	repl := New(agent, NewScannerReader(strings.NewReader(input), &out), &out, opts)
	require.NoError(t, repl.Run(context.Background()))
	return out.String()
}

func TestREPL_BannerAndExit(t *testing.T) {
	for _, cmd := range []string{"exit", "quit", "EXIT", "  Quit  "} {
		t.Run(cmd, func(t *testing.T) {
			agent := &mockAgent{}
			out := runREPL(t, agent, cmd+"\nnever reached\n", Options{Model: "qwen3:8b"})

			assert.Contains(t, out, "Using Ollama model: qwen3:8b")
			assert.Contains(t, out, "Supported models: llama3:8b, qwen3:8b, deepseek-coder:6.7b")
			assert.Contains(t, out, "Local Agent Ready! Type 'exit' to quit.")
			assert.Contains(t, out, "Enter your query: ")
			assert.Contains(t, out, "Exiting agent. Goodbye!")
			agent.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestREPL_EOFExitsCleanly(t *testing.T) {
	agent := &mockAgent{}
	out := runREPL(t, agent, "", Options{})
	assert.Contains(t, out, "Exiting agent. Goodbye!")
}

func TestREPL_AnswersQueryAndSkipsBlankLines(t *testing.T) {
	agent := &mockAgent{}
	agent.On("Run", mock.Anything, "what is 2+2?").Return(&domain.AgentResponse{
		Response:   "4",
		Iterations: 2,
		StopReason: domain.StopFinalAnswer,
	}, nil).Once()

	out := runREPL(t, agent, "\n   \nwhat is 2+2?\nexit\n", Options{})

	assert.Contains(t, out, "Agent Response:\n4\n")
	agent.AssertExpectations(t)
}

func TestREPL_ErrorDoesNotEndLoop(t *testing.T) {
	agent := &mockAgent{}
	agent.On("Run", mock.Anything, "first").Return(nil, errors.New("llm generate: connection refused")).Once()
	agent.On("Run", mock.Anything, "second").Return(&domain.AgentResponse{Response: "ok"}, nil).Once()

	out := runREPL(t, agent, "first\nsecond\nexit\n", Options{})

	assert.Contains(t, out, "Error: llm generate: connection refused")
	assert.Contains(t, out, "Agent Response:\nok")
	agent.AssertExpectations(t)
}

func TestREPL_VerbosePrintsSteps(t *testing.T) {
	var out bytes.Buffer
	repl := New(&mockAgent{}, NewScannerReader(strings.NewReader(""), &out), &out, Options{Verbose: true})

	repl.printStep(domain.ReActStep{
		Thought:     "I should compute this",
		Action:      "python_repl",
		ActionInput: "print(2+2)",
		Observation: "4",
	})
	repl.printStep(domain.ReActStep{Thought: "I now know the final answer", IsFinalAnswer: true, FinalAnswer: "4"})

	text := out.String()
	assert.Contains(t, text, "Thought: I should compute this")
	assert.Contains(t, text, "Action: python_repl")
	assert.Contains(t, text, "Action Input: print(2+2)")
	assert.Contains(t, text, "Observation: 4")
	assert.Contains(t, text, "Final Answer: 4")
}
