package domain

import (
	"errors"
	"time"
)

// ErrTraceNotFound is returned by trace lookups for unknown IDs.
var ErrTraceNotFound = errors.New("trace not found")

// TraceID uniquely identifies a trace (one per agent query).
type TraceID string

// SpanID uniquely identifies a span within a trace.
type SpanID string

// SpanKind classifies the type of operation a span represents.
type SpanKind string

const (
	SpanKindAgent SpanKind = "agent" // Top-level query
	SpanKindLLM   SpanKind = "llm"   // Model call
	SpanKindTool  SpanKind = "tool"  // Tool execution
)

// SpanStatus indicates completion state of a span.
type SpanStatus string

const (
	SpanStatusRunning SpanStatus = "running"
	SpanStatusOK      SpanStatus = "ok"
	SpanStatusError   SpanStatus = "error"
)

// Span represents a single unit of work within a trace.
type Span struct {
	ID         SpanID            `json:"id"`
	ParentID   SpanID            `json:"parent_id,omitempty"` // empty = root
	TraceID    TraceID           `json:"trace_id"`
	Name       string            `json:"name"` // e.g. "llm.generate", "tool.web_search"
	Kind       SpanKind          `json:"kind"`
	Status     SpanStatus        `json:"status"`
	Input      string            `json:"input,omitempty"`  // truncated input
	Output     string            `json:"output,omitempty"` // truncated output
	Error      string            `json:"error,omitempty"`
	Model      string            `json:"model,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    *time.Time        `json:"end_time,omitempty"`
	DurationMs int64             `json:"duration_ms,omitempty"`
}

// Trace groups all spans of a single query.
type Trace struct {
	ID         TraceID    `json:"id"`
	QueryID    QueryID    `json:"query_id"`
	RootSpanID SpanID     `json:"root_span_id"`
	Name       string     `json:"name"`
	Status     SpanStatus `json:"status"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`
	SpanCount  int        `json:"span_count"`
	Spans      []Span     `json:"spans,omitempty"`
}

// TraceSummary is a lightweight view for listing traces.
type TraceSummary struct {
	ID         TraceID    `json:"id"`
	Name       string     `json:"name"`
	Status     SpanStatus `json:"status"`
	StartTime  time.Time  `json:"start_time"`
	DurationMs int64      `json:"duration_ms"`
	SpanCount  int        `json:"span_count"`
}
