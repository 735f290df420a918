package duckdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "traces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleTrace(id string, start time.Time) *domain.Trace {
	end := start.Add(1500 * time.Millisecond)
	traceID := domain.TraceID(id)
	root := domain.SpanID(id + "-root")
	return &domain.Trace{
		ID:         traceID,
		QueryID:    domain.QueryID("q-" + id),
		RootSpanID: root,
		Name:       "query: what is 2+2",
		Status:     domain.SpanStatusOK,
		StartTime:  start,
		EndTime:    &end,
		DurationMs: 1500,
		SpanCount:  2,
		Spans: []domain.Span{
			{
				ID:        root,
				TraceID:   traceID,
				Name:      "query: what is 2+2",
				Kind:      domain.SpanKindAgent,
				Status:    domain.SpanStatusOK,
				StartTime: start,
				EndTime:   &end,
			},
			{
				ID:         domain.SpanID(id + "-tool"),
				ParentID:   root,
				TraceID:    traceID,
				Name:       "tool.python_repl",
				Kind:       domain.SpanKindTool,
				Status:     domain.SpanStatusOK,
				Input:      "print(2+2)",
				Output:     "4",
				Attributes: map[string]string{"tool": "python_repl"},
				StartTime:  start.Add(time.Millisecond),
				EndTime:    &end,
				DurationMs: 20,
			},
		},
	}
}

func TestRepository_SaveAndGetTrace(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, repo.SaveTrace(ctx, sampleTrace("t1", start)))

	got, err := repo.GetTrace(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.QueryID("q-t1"), got.QueryID)
	assert.Equal(t, domain.SpanStatusOK, got.Status)
	assert.Equal(t, 2, got.SpanCount)
	require.Len(t, got.Spans, 2)
	assert.Equal(t, domain.SpanKindAgent, got.Spans[0].Kind)
	assert.Equal(t, "4", got.Spans[1].Output)
	assert.Equal(t, "python_repl", got.Spans[1].Attributes["tool"])
}

func TestRepository_SaveTraceIsUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tr := sampleTrace("t1", time.Now().UTC())

	require.NoError(t, repo.SaveTrace(ctx, tr))
	tr.Status = domain.SpanStatusError
	require.NoError(t, repo.SaveTrace(ctx, tr))

	list, err := repo.ListTraces(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.SpanStatusError, list[0].Status)
}

func TestRepository_ListTracesNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, repo.SaveTrace(ctx, sampleTrace("old", base.Add(-time.Hour))))
	require.NoError(t, repo.SaveTrace(ctx, sampleTrace("new", base)))

	list, err := repo.ListTraces(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.TraceID("new"), list[0].ID)
	assert.Equal(t, domain.TraceID("old"), list[1].ID)

	limited, err := repo.ListTraces(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRepository_GetTraceNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetTrace(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTraceNotFound)
}
