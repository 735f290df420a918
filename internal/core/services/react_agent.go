package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/stoewer/go-strcase"
	"golang.org/x/sync/semaphore"
)

const (
	defaultMaxIterations  = 15
	defaultMaxParseErrors = 3

	stoppedIterationMsg  = "Agent stopped due to iteration limit."
	stoppedParseErrorMsg = "Agent stopped after repeated output parsing errors."
)

// AgentOptions bounds the reasoning loop
type AgentOptions struct {
	MaxIterations  int
	MaxParseErrors int
	Model          string // recorded on LLM spans only
}

// StepFunc receives each completed step while a query is running.
type StepFunc func(step domain.ReActStep)

type runConfig struct {
	onStep StepFunc
}

// RunOption customises a single Run call.
type RunOption func(*runConfig)

// WithStepHandler streams each step to fn as soon as it completes.
func WithStepHandler(fn StepFunc) RunOption {
	return func(c *runConfig) { c.onStep = fn }
}

// ReActAgentService implements the think/act/observe loop over a fixed tool registry.
// Queries are resolved strictly one at a time.
type ReActAgentService struct {
	logger         *slog.Logger
	tools          *domain.ToolRegistry
	prompt         *PromptBuilder
	tracer         *TraceCollector
	sem            *semaphore.Weighted
	maxIters       int
	maxParseErrors int

	mu    sync.RWMutex
	llm   domain.LLMProvider
	model string
}

// NewReActAgentService creates a new ReAct agent. tracer may be nil.
func NewReActAgentService(
	logger *slog.Logger,
	llm domain.LLMProvider,
	tools *domain.ToolRegistry,
	tracer *TraceCollector,
	opts AgentOptions,
) (*ReActAgentService, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if tools == nil || tools.Len() == 0 {
		return nil, fmt.Errorf("at least one tool is required")
	}
	prompt, err := NewPromptBuilder(tools)
	if err != nil {
		return nil, err
	}
	if tracer == nil {
		tracer = NewTraceCollector(logger, nil)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.MaxParseErrors <= 0 {
		opts.MaxParseErrors = defaultMaxParseErrors
	}
	return &ReActAgentService{
		logger:         logger,
		llm:            llm,
		model:          opts.Model,
		tools:          tools,
		prompt:         prompt,
		tracer:         tracer,
		sem:            semaphore.NewWeighted(1),
		maxIters:       opts.MaxIterations,
		maxParseErrors: opts.MaxParseErrors,
	}, nil
}

// UpdateProvider swaps the model backend. A query already in flight keeps the
// provider it started with.
func (s *ReActAgentService) UpdateProvider(llm domain.LLMProvider, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.llm = llm
	s.model = model
}

func (s *ReActAgentService) provider() (domain.LLMProvider, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llm, s.model
}

// Run resolves one user question. It returns an error only when the model call
// itself fails; tool and parse failures are recovered inside the loop.
func (s *ReActAgentService) Run(ctx context.Context, question string, opts ...RunOption) (*domain.AgentResponse, error) {
	var rc runConfig
	for _, o := range opts {
		o(&rc)
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for agent: %w", err)
	}
	defer s.sem.Release(1)

	llm, model := s.provider()
	queryID := domain.NewQueryID()
	log := s.logger.With("query_id", string(queryID))
	log.Info("starting ReAct loop", "question", truncate(question, 200))

	traceName := clip("query: "+question, 80, "...")
	ctx, traceID := s.tracer.StartTrace(ctx, queryID, traceName)

	var scratchpad strings.Builder
	steps := []domain.ReActStep{}
	parseErrors := 0

	finish := func(answer string, reason domain.StopReason, iterations int) *domain.AgentResponse {
		status := domain.SpanStatusOK
		errMsg := ""
		if reason != domain.StopFinalAnswer {
			status = domain.SpanStatusError
			errMsg = string(reason)
		}
		s.tracer.EndTrace(ctx, traceID, status, errMsg)
		log.Info("ReAct loop finished", "stop_reason", string(reason), "iterations", iterations)
		return &domain.AgentResponse{
			ID:         queryID,
			Response:   answer,
			Steps:      steps,
			Iterations: iterations,
			StopReason: reason,
		}
	}

	for i := 0; i < s.maxIters; i++ {
		iteration := i + 1

		// AWAITING_MODEL
		prompt, err := s.prompt.Build(question, scratchpad.String())
		if err != nil {
			s.tracer.EndTrace(ctx, traceID, domain.SpanStatusError, err.Error())
			return nil, err
		}
		completion, err := s.generate(ctx, llm, model, prompt, iteration)
		if err != nil {
			s.tracer.EndTrace(ctx, traceID, domain.SpanStatusError, err.Error())
			log.Error("model call failed", "iteration", iteration, "error", err)
			return nil, fmt.Errorf("llm generate: %w", err)
		}
		log.Debug("LLM response", "iteration", iteration, "response", truncate(completion, 200))

		// PARSING_ACTION
		parsed := parseReActOutput(completion)
		step := domain.ReActStep{
			Thought: parsed.Thought,
			Log:     trimHallucinatedObservation(completion),
		}

		switch parsed.Kind {
		case domain.ParseFinalAnswer:
			step.IsFinalAnswer = true
			step.FinalAnswer = parsed.Answer
			steps = append(steps, step)
			notify(rc.onStep, step)
			return finish(parsed.Answer, domain.StopFinalAnswer, iteration), nil

		case domain.ParseAction:
			// DISPATCHING_TOOL
			parseErrors = 0
			step.Action = parsed.Tool
			step.ActionInput = parsed.Input
			step.Observation = s.dispatch(ctx, parsed.Tool, parsed.Input)

		default:
			parseErrors++
			step.Observation = parsed.Reason
			log.Warn("could not parse model output", "iteration", iteration, "reason", parsed.Reason, "consecutive", parseErrors)
		}

		steps = append(steps, step)
		notify(rc.onStep, step)

		if parsed.Kind == domain.ParseUnparsable && parseErrors >= s.maxParseErrors {
			return finish(bestEffortAnswer(steps, stoppedParseErrorMsg), domain.StopMaxParseErrors, iteration), nil
		}

		scratchpad.WriteString(step.Log)
		scratchpad.WriteString("\nObservation: ")
		scratchpad.WriteString(step.Observation)
		scratchpad.WriteString("\nThought: ")
	}

	return finish(bestEffortAnswer(steps, stoppedIterationMsg), domain.StopMaxIterations, s.maxIters), nil
}

func (s *ReActAgentService) generate(ctx context.Context, llm domain.LLMProvider, model, prompt string, iteration int) (string, error) {
	_, spanID := s.tracer.StartSpan(ctx, fmt.Sprintf("llm.generate (iter %d)", iteration), domain.SpanKindLLM, map[string]string{
		"iteration": fmt.Sprintf("%d", iteration),
	})
	s.tracer.SetSpanInput(spanID, prompt[max(0, len(prompt)-maxInputOutput):])
	s.tracer.SetSpanModel(spanID, model)

	completion, err := llm.GenerateText(ctx, prompt)
	if err != nil {
		s.tracer.EndSpan(spanID, domain.SpanStatusError, "", err.Error())
		return "", err
	}
	s.tracer.EndSpan(spanID, domain.SpanStatusOK, completion, "")
	return completion, nil
}

// dispatch resolves the tool by name and runs it. Unknown names produce an
// observation instead of a dispatch.
func (s *ReActAgentService) dispatch(ctx context.Context, name, input string) string {
	tool, err := s.resolveTool(name)
	if err != nil {
		s.logger.Warn("model requested unknown tool", "error", err)
		return s.unknownToolObservation(name)
	}

	s.logger.Info("executing tool", "tool", tool.Name, "input", truncate(input, 200))
	toolCtx, spanID := s.tracer.StartSpan(ctx, "tool."+tool.Name, domain.SpanKindTool, map[string]string{
		"tool": tool.Name,
	})
	s.tracer.SetSpanInput(spanID, input)

	observation := tool.Run(toolCtx, input)

	if strings.HasPrefix(observation, "Error") {
		s.tracer.EndSpan(spanID, domain.SpanStatusError, observation, observation)
	} else {
		s.tracer.EndSpan(spanID, domain.SpanStatusOK, observation, "")
	}
	s.logger.Info("tool executed", "tool", tool.Name, "observation", truncate(observation, 200))
	return observation
}

// resolveTool tries the exact name, then a cleaned-up and snake_cased form so
// that "`Web Search`" finds web_search. It never guesses beyond that.
func (s *ReActAgentService) resolveTool(name string) (*domain.Tool, error) {
	if tool, ok := s.tools.GetTool(name); ok {
		return tool, nil
	}
	cleaned := cleanToolName(name)
	if tool, ok := s.tools.GetTool(cleaned); ok {
		return tool, nil
	}
	return s.tools.Lookup(strcase.SnakeCase(cleaned))
}

func (s *ReActAgentService) unknownToolObservation(name string) string {
	cleaned := cleanToolName(name)
	msg := fmt.Sprintf("Error: unknown tool %q. Valid tools: [%s].", cleaned, strings.Join(s.tools.Names(), ", "))
	if hint := s.tools.Suggest(strcase.SnakeCase(cleaned)); hint != "" {
		msg += fmt.Sprintf(" Did you mean %q?", hint)
	}
	return msg
}

// bestEffortAnswer returns the last tool observation, or fallback when no tool ran.
func bestEffortAnswer(steps []domain.ReActStep, fallback string) string {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Action != "" && steps[i].Observation != "" {
			return steps[i].Observation
		}
	}
	return fallback
}

func notify(fn StepFunc, step domain.ReActStep) {
	if fn != nil {
		fn(step)
	}
}
