package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/manthysbr/localagent/internal/core/domain"
)

// SaveTrace persists a completed trace and all its spans to DuckDB.
func (r *Repository) SaveTrace(ctx context.Context, trace *domain.Trace) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO traces (id, query_id, name, status, root_span_id,
		                    start_time, end_time, duration_ms, span_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status       = excluded.status,
			end_time     = excluded.end_time,
			duration_ms  = excluded.duration_ms,
			span_count   = excluded.span_count`,
		string(trace.ID),
		string(trace.QueryID),
		trace.Name,
		string(trace.Status),
		string(trace.RootSpanID),
		trace.StartTime,
		trace.EndTime,
		trace.DurationMs,
		trace.SpanCount,
	)
	if err != nil {
		return fmt.Errorf("upsert trace: %w", err)
	}

	for _, span := range trace.Spans {
		attrJSON, _ := json.Marshal(span.Attributes)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO spans (id, trace_id, parent_id, name, kind, status,
			                   input, output, error, model, attributes, start_time, end_time, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				status      = excluded.status,
				output      = excluded.output,
				error       = excluded.error,
				end_time    = excluded.end_time,
				duration_ms = excluded.duration_ms`,
			string(span.ID),
			string(span.TraceID),
			string(span.ParentID),
			span.Name,
			string(span.Kind),
			string(span.Status),
			span.Input,
			span.Output,
			span.Error,
			span.Model,
			string(attrJSON),
			span.StartTime,
			span.EndTime,
			span.DurationMs,
		)
		if err != nil {
			return fmt.Errorf("upsert span %s: %w", span.ID, err)
		}
	}

	return tx.Commit()
}

// ListTraces returns summaries of the most recent traces (newest first).
func (r *Repository) ListTraces(ctx context.Context, limit int) ([]domain.TraceSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, status, start_time, duration_ms, span_count
		FROM traces
		ORDER BY start_time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	out := []domain.TraceSummary{}
	for rows.Next() {
		var s domain.TraceSummary
		var id, statusStr string
		if err := rows.Scan(&id, &s.Name, &statusStr, &s.StartTime, &s.DurationMs, &s.SpanCount); err != nil {
			return nil, err
		}
		s.ID = domain.TraceID(id)
		s.Status = domain.SpanStatus(statusStr)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetTrace loads one trace and its spans, for traces the in-memory ring has
// already evicted.
func (r *Repository) GetTrace(ctx context.Context, id domain.TraceID) (*domain.Trace, error) {
	var (
		t                         domain.Trace
		queryID, status, rootSpan string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT query_id, name, status, root_span_id, start_time, end_time, duration_ms, span_count
		FROM traces WHERE id = ?`, string(id)).
		Scan(&queryID, &t.Name, &status, &rootSpan, &t.StartTime, &t.EndTime, &t.DurationMs, &t.SpanCount)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %s", domain.ErrTraceNotFound, id)
	case err != nil:
		return nil, fmt.Errorf("get trace %s: %w", id, err)
	}
	t.ID = id
	t.QueryID = domain.QueryID(queryID)
	t.Status = domain.SpanStatus(status)
	t.RootSpanID = domain.SpanID(rootSpan)

	if t.Spans, err = r.spansOf(ctx, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// spansOf returns the spans of a trace in start order.
func (r *Repository) spansOf(ctx context.Context, id domain.TraceID) ([]domain.Span, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, parent_id, name, kind, status, input, output, error, model,
		       attributes, start_time, end_time, duration_ms
		FROM spans WHERE trace_id = ?
		ORDER BY start_time`, string(id))
	if err != nil {
		return nil, fmt.Errorf("query spans of %s: %w", id, err)
	}
	defer rows.Close()

	spans := []domain.Span{}
	for rows.Next() {
		span := domain.Span{TraceID: id}
		var spanID, parent, kind, status, attrs string
		if err := rows.Scan(&spanID, &parent, &span.Name, &kind, &status,
			&span.Input, &span.Output, &span.Error, &span.Model,
			&attrs, &span.StartTime, &span.EndTime, &span.DurationMs); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		span.ID = domain.SpanID(spanID)
		span.ParentID = domain.SpanID(parent)
		span.Kind = domain.SpanKind(kind)
		span.Status = domain.SpanStatus(status)
		if attrs != "" && attrs != "null" {
			if err := json.Unmarshal([]byte(attrs), &span.Attributes); err != nil {
				return nil, fmt.Errorf("decode attributes of span %s: %w", spanID, err)
			}
		}
		spans = append(spans, span)
	}
	return spans, rows.Err()
}
