package ports

import (
	"context"

	"github.com/manthysbr/localagent/internal/core/domain"
)

// CodeSandbox abstracts where python_repl code runs (Docker, local subprocess).
type CodeSandbox interface {
	// Run executes a Python snippet and captures its output.
	// A non-zero exit status is reported in the result, not as an error.
	Run(ctx context.Context, code string) (domain.ExecResult, error)

	// Name identifies the back end in logs and traces.
	Name() string
}

// TraceStore abstracts the persistent trace audit log (DuckDB).
type TraceStore interface {
	// SaveTrace persists a finished trace and its spans.
	SaveTrace(ctx context.Context, trace *domain.Trace) error

	// ListTraces returns the most recent persisted trace summaries.
	ListTraces(ctx context.Context, limit int) ([]domain.TraceSummary, error)

	// GetTrace loads one persisted trace with its spans, or domain.ErrTraceNotFound.
	GetTrace(ctx context.Context, id domain.TraceID) (*domain.Trace, error)

	// Close releases the underlying database.
	Close() error
}
