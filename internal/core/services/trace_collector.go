package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/manthysbr/localagent/internal/core/domain"
)

const (
	maxTraces      = 200  // ring buffer size
	maxInputOutput = 2000 // truncate input/output at 2KB
)

// TraceRepository is the minimal persistence interface needed by TraceCollector.
type TraceRepository interface {
	SaveTrace(ctx context.Context, trace *domain.Trace) error
}

// TraceCollector records one trace per query with a span for every model
// call and tool dispatch. It keeps a ring buffer of recent traces in memory and
// optionally writes finished traces to a repository. Traces are an audit
// trail only; nothing in them is fed back to the agent.
type TraceCollector struct {
	mu     sync.RWMutex
	logger *slog.Logger
	repo   TraceRepository // optional

	traces     map[domain.TraceID]*domain.Trace
	spans      map[domain.SpanID]*domain.Span
	traceOrder []domain.TraceID // for eviction
}

// NewTraceCollector creates a new collector. repo may be nil.
func NewTraceCollector(logger *slog.Logger, repo TraceRepository) *TraceCollector {
	return &TraceCollector{
		logger: logger,
		repo:   repo,
		traces: make(map[domain.TraceID]*domain.Trace, maxTraces),
		spans:  make(map[domain.SpanID]*domain.Span, maxTraces*8),
	}
}

type traceCtxKey struct{}
type spanCtxKey struct{}

// ContextWithTrace stores trace and span IDs in context for propagation.
func ContextWithTrace(ctx context.Context, traceID domain.TraceID, spanID domain.SpanID) context.Context {
	ctx = context.WithValue(ctx, traceCtxKey{}, traceID)
	ctx = context.WithValue(ctx, spanCtxKey{}, spanID)
	return ctx
}

// TraceFromContext extracts trace and current span ID from context.
func TraceFromContext(ctx context.Context) (domain.TraceID, domain.SpanID, bool) {
	traceID, ok1 := ctx.Value(traceCtxKey{}).(domain.TraceID)
	spanID, ok2 := ctx.Value(spanCtxKey{}).(domain.SpanID)
	return traceID, spanID, ok1 && ok2
}

// StartTrace begins a new trace for a query. Returns updated context with trace/span.
func (tc *TraceCollector) StartTrace(ctx context.Context, queryID domain.QueryID, name string) (context.Context, domain.TraceID) {
	traceID := domain.TraceID(uuid.New().String())
	rootSpanID := domain.SpanID(uuid.New().String())
	now := time.Now()

	rootSpan := &domain.Span{
		ID:        rootSpanID,
		TraceID:   traceID,
		Name:      name,
		Kind:      domain.SpanKindAgent,
		Status:    domain.SpanStatusRunning,
		StartTime: now,
	}

	trace := &domain.Trace{
		ID:         traceID,
		QueryID:    queryID,
		RootSpanID: rootSpanID,
		Name:       name,
		Status:     domain.SpanStatusRunning,
		StartTime:  now,
		SpanCount:  1,
	}

	tc.mu.Lock()
	tc.evictIfNeeded()
	tc.traces[traceID] = trace
	tc.spans[rootSpanID] = rootSpan
	tc.traceOrder = append(tc.traceOrder, traceID)
	tc.mu.Unlock()

	tc.logger.Debug("trace started", "trace_id", string(traceID), "query_id", string(queryID))

	return ContextWithTrace(ctx, traceID, rootSpanID), traceID
}

// EndTrace finalizes a trace and hands a snapshot to the repository, if any.
func (tc *TraceCollector) EndTrace(ctx context.Context, traceID domain.TraceID, status domain.SpanStatus, errMsg string) {
	tc.mu.Lock()

	trace, ok := tc.traces[traceID]
	if !ok {
		tc.mu.Unlock()
		return
	}

	now := time.Now()
	trace.Status = status
	trace.EndTime = &now
	trace.DurationMs = now.Sub(trace.StartTime).Milliseconds()

	if root, ok := tc.spans[trace.RootSpanID]; ok {
		root.Status = status
		root.EndTime = &now
		root.DurationMs = now.Sub(root.StartTime).Milliseconds()
		root.Error = errMsg
	}

	var snapshot *domain.Trace
	if tc.repo != nil {
		cp := *trace
		cp.Spans = tc.spansOf(traceID)
		snapshot = &cp
	}
	tc.mu.Unlock()

	tc.logger.Debug("trace ended", "trace_id", string(traceID), "status", string(status), "duration_ms", trace.DurationMs)

	if snapshot == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := tc.repo.SaveTrace(saveCtx, snapshot); err != nil {
		tc.logger.Warn("failed to persist trace", "trace_id", string(traceID), "error", err)
	}
}

// StartSpan creates a child span under the current context's span.
// Without a trace in ctx it returns a no-op span ID.
func (tc *TraceCollector) StartSpan(ctx context.Context, name string, kind domain.SpanKind, attrs map[string]string) (context.Context, domain.SpanID) {
	traceID, parentSpanID, ok := TraceFromContext(ctx)
	if !ok {
		return ctx, ""
	}

	spanID := domain.SpanID(uuid.New().String())
	span := &domain.Span{
		ID:         spanID,
		ParentID:   parentSpanID,
		TraceID:    traceID,
		Name:       name,
		Kind:       kind,
		Status:     domain.SpanStatusRunning,
		Attributes: attrs,
		StartTime:  time.Now(),
	}

	tc.mu.Lock()
	tc.spans[spanID] = span
	if trace, ok := tc.traces[traceID]; ok {
		trace.SpanCount++
	}
	tc.mu.Unlock()

	return ContextWithTrace(ctx, traceID, spanID), spanID
}

// EndSpan finalizes a span with output and status.
func (tc *TraceCollector) EndSpan(spanID domain.SpanID, status domain.SpanStatus, output string, errMsg string) {
	if spanID == "" {
		return
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	span, ok := tc.spans[spanID]
	if !ok {
		return
	}

	now := time.Now()
	span.Status = status
	span.Output = truncate(output, maxInputOutput)
	span.EndTime = &now
	span.DurationMs = now.Sub(span.StartTime).Milliseconds()
	span.Error = errMsg
}

// SetSpanInput sets the input for a span.
func (tc *TraceCollector) SetSpanInput(spanID domain.SpanID, input string) {
	if spanID == "" {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if span, ok := tc.spans[spanID]; ok {
		span.Input = truncate(input, maxInputOutput)
	}
}

// SetSpanModel sets the model ID for an LLM span.
func (tc *TraceCollector) SetSpanModel(spanID domain.SpanID, model string) {
	if spanID == "" {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if span, ok := tc.spans[spanID]; ok {
		span.Model = model
	}
}

// ListTraces returns summaries of recent traces (newest first).
func (tc *TraceCollector) ListTraces(limit int) []domain.TraceSummary {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	if limit <= 0 || limit > len(tc.traceOrder) {
		limit = len(tc.traceOrder)
	}

	result := make([]domain.TraceSummary, 0, limit)
	for i := len(tc.traceOrder) - 1; i >= 0 && len(result) < limit; i-- {
		if trace, ok := tc.traces[tc.traceOrder[i]]; ok {
			result = append(result, domain.TraceSummary{
				ID:         trace.ID,
				Name:       trace.Name,
				Status:     trace.Status,
				StartTime:  trace.StartTime,
				DurationMs: trace.DurationMs,
				SpanCount:  trace.SpanCount,
			})
		}
	}
	return result
}

// GetTrace returns a full trace with all spans.
func (tc *TraceCollector) GetTrace(traceID domain.TraceID) (*domain.Trace, error) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	trace, ok := tc.traces[traceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTraceNotFound, traceID)
	}

	result := *trace
	result.Spans = tc.spansOf(traceID)
	return &result, nil
}

// spansOf must be called with tc.mu held.
func (tc *TraceCollector) spansOf(traceID domain.TraceID) []domain.Span {
	var out []domain.Span
	for _, span := range tc.spans {
		if span.TraceID == traceID {
			out = append(out, *span)
		}
	}
	return out
}

func (tc *TraceCollector) evictIfNeeded() {
	for len(tc.traceOrder) >= maxTraces {
		oldID := tc.traceOrder[0]
		tc.traceOrder = tc.traceOrder[1:]

		for sid, span := range tc.spans {
			if span.TraceID == oldID {
				delete(tc.spans, sid)
			}
		}
		delete(tc.traces, oldID)
	}
}

func truncate(s string, maxLen int) string {
	return clip(s, maxLen, "...[truncated]")
}

// clip cuts s to at most maxLen bytes without splitting a UTF-8 sequence and
// appends suffix when anything was dropped.
func clip(s string, maxLen int, suffix string) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}
