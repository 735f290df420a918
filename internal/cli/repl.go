package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/manthysbr/localagent/internal/core/services"
)

const (
	promptText = "Enter your query: "
	goodbye    = "Exiting agent. Goodbye!"
)

// supportedModels is informational only; any model Ollama serves works.
var supportedModels = []string{"llama3:8b", "qwen3:8b", "deepseek-coder:6.7b"}

var exampleQueries = []string{
	"What is the current weather in New York?",
	"Write a Python function to calculate the factorial of a number and save it to factorial.py",
	"Read the content of a file named 'example.txt'",
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	thoughtStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Agent is the slice of the reasoning loop the REPL drives.
type Agent interface {
	Run(ctx context.Context, question string, opts ...services.RunOption) (*domain.AgentResponse, error)
}

// Options configures the REPL.
type Options struct {
	Model   string
	Verbose bool // print every Thought/Action/Observation as it happens
	Styled  bool // lipgloss colours and glamour markdown; off for pipes and tests
}

// REPL reads one query per line and prints the agent's answer.
type REPL struct {
	agent    Agent
	in       LineReader
	out      io.Writer
	opts     Options
	markdown *glamour.TermRenderer
}

// New creates a REPL. When styling is requested but the markdown renderer
// cannot be built, answers are printed as plain text.
func New(agent Agent, in LineReader, out io.Writer, opts Options) *REPL {
	r := &REPL{agent: agent, in: in, out: out, opts: opts}
	if opts.Styled {
		if md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100)); err == nil {
			r.markdown = md
		}
	}
	return r
}

// Run prints the banner and serves queries until exit, quit, EOF or Ctrl+C.
// Query failures are printed and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	r.banner()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := r.in.Prompt(promptText)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrAborted) {
				fmt.Fprintln(r.out)
				fmt.Fprintln(r.out, goodbye)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}
		switch strings.ToLower(query) {
		case "exit", "quit":
			fmt.Fprintln(r.out, goodbye)
			return nil
		}

		r.ask(ctx, query)
	}
}

func (r *REPL) ask(ctx context.Context, query string) {
	var runOpts []services.RunOption
	if r.opts.Verbose {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, r.style(dimStyle, "> Entering new agent chain..."))
		runOpts = append(runOpts, services.WithStepHandler(r.printStep))
	}

	resp, err := r.agent.Run(ctx, query, runOpts...)
	if err != nil {
		fmt.Fprintln(r.out, r.style(errorStyle, fmt.Sprintf("Error: %v", err)))
		return
	}

	if r.opts.Verbose {
		fmt.Fprintln(r.out, r.style(dimStyle, fmt.Sprintf("> Finished chain (%s after %d iterations).", resp.StopReason, resp.Iterations)))
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.style(labelStyle, "Agent Response:"))
	fmt.Fprintln(r.out, r.render(resp.Response))
}

func (r *REPL) printStep(step domain.ReActStep) {
	if step.Thought != "" {
		fmt.Fprintln(r.out, r.style(thoughtStyle, "Thought: "+step.Thought))
	}
	if step.IsFinalAnswer {
		fmt.Fprintln(r.out, r.style(labelStyle, "Final Answer: ")+step.FinalAnswer)
		return
	}
	if step.Action != "" {
		fmt.Fprintln(r.out, r.style(labelStyle, "Action: ")+step.Action)
		fmt.Fprintln(r.out, r.style(labelStyle, "Action Input: ")+step.ActionInput)
	}
	fmt.Fprintln(r.out, r.style(labelStyle, "Observation: ")+step.Observation)
}

func (r *REPL) banner() {
	model := r.opts.Model
	if model == "" {
		model = "llama3:8b"
	}
	fmt.Fprintln(r.out, r.style(dimStyle, "Using Ollama model: ")+model)
	fmt.Fprintf(r.out, "Supported models: %s\n\n", strings.Join(supportedModels, ", "))
	fmt.Fprintln(r.out, r.style(titleStyle, "Local Agent Ready! Type 'exit' to quit."))
	fmt.Fprintln(r.out, "Example queries:")
	for _, q := range exampleQueries {
		fmt.Fprintln(r.out, "- "+q)
	}
	fmt.Fprintln(r.out)
}

func (r *REPL) style(s lipgloss.Style, text string) string {
	if !r.opts.Styled {
		return text
	}
	return s.Render(text)
}

// render returns the answer as terminal markdown, or unchanged when plain.
func (r *REPL) render(answer string) string {
	if r.markdown == nil {
		return answer
	}
	out, err := r.markdown.Render(answer)
	if err != nil {
		return answer
	}
	return strings.TrimRight(out, "\n")
}
