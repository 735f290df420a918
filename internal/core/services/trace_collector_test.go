package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTraceRepo struct {
	mock.Mock
}

func (m *mockTraceRepo) SaveTrace(ctx context.Context, trace *domain.Trace) error {
	return m.Called(ctx, trace).Error(0)
}

func TestTraceCollector_SpansNestUnderTrace(t *testing.T) {
	tc := NewTraceCollector(testLogger(), nil)

	ctx, traceID := tc.StartTrace(context.Background(), "q-1", "query: hi")
	_, spanID := tc.StartSpan(ctx, "tool.web_search", domain.SpanKindTool, map[string]string{"tool": "web_search"})
	tc.SetSpanInput(spanID, "hi")
	tc.EndSpan(spanID, domain.SpanStatusOK, "result", "")
	tc.EndTrace(ctx, traceID, domain.SpanStatusOK, "")

	trace, err := tc.GetTrace(traceID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueryID("q-1"), trace.QueryID)
	assert.Equal(t, domain.SpanStatusOK, trace.Status)
	assert.NotNil(t, trace.EndTime)
	assert.Equal(t, 2, trace.SpanCount)
	require.Len(t, trace.Spans, 2)

	for _, span := range trace.Spans {
		if span.ID == spanID {
			assert.Equal(t, trace.RootSpanID, span.ParentID)
			assert.Equal(t, "hi", span.Input)
			assert.Equal(t, "result", span.Output)
		}
	}
}

func TestTraceCollector_SpanWithoutTraceIsNoop(t *testing.T) {
	tc := NewTraceCollector(testLogger(), nil)

	_, spanID := tc.StartSpan(context.Background(), "orphan", domain.SpanKindLLM, nil)
	assert.Empty(t, spanID)
	tc.EndSpan(spanID, domain.SpanStatusOK, "", "")
	assert.Empty(t, tc.ListTraces(10))
}

func TestTraceCollector_ListNewestFirstAndEvicts(t *testing.T) {
	tc := NewTraceCollector(testLogger(), nil)

	var ids []domain.TraceID
	for i := 0; i < maxTraces+5; i++ {
		ctx, id := tc.StartTrace(context.Background(), domain.NewQueryID(), "q")
		tc.EndTrace(ctx, id, domain.SpanStatusOK, "")
		ids = append(ids, id)
	}

	all := tc.ListTraces(0)
	assert.Len(t, all, maxTraces)
	assert.Equal(t, ids[len(ids)-1], all[0].ID)

	_, err := tc.GetTrace(ids[0])
	assert.Error(t, err)

	assert.Len(t, tc.ListTraces(3), 3)
}

func TestTraceCollector_PersistsFinishedTrace(t *testing.T) {
	repo := &mockTraceRepo{}
	repo.On("SaveTrace", mock.Anything, mock.MatchedBy(func(tr *domain.Trace) bool {
		return tr.Status == domain.SpanStatusError && len(tr.Spans) == 1 && tr.Spans[0].Error == "max_iterations"
	})).Return(nil).Once()

	tc := NewTraceCollector(testLogger(), repo)
	ctx, id := tc.StartTrace(context.Background(), "q-2", "query: loop")
	tc.EndTrace(ctx, id, domain.SpanStatusError, "max_iterations")

	repo.AssertExpectations(t)
}

func TestTraceCollector_PersistFailureIsNotFatal(t *testing.T) {
	repo := &mockTraceRepo{}
	repo.On("SaveTrace", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	tc := NewTraceCollector(testLogger(), repo)
	ctx, id := tc.StartTrace(context.Background(), "q-3", "query")
	tc.EndTrace(ctx, id, domain.SpanStatusOK, "")

	_, err := tc.GetTrace(id)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...[truncated]", truncate("abcdef", 2))

	// "é" is two bytes; a cut inside it backs off to the rune start.
	got := truncate("aéb", 2)
	assert.Equal(t, "a...[truncated]", got)
	assert.True(t, utf8.ValidString(got))

	name := clip("query: "+strings.Repeat("日本", 30), 80, "...")
	assert.True(t, utf8.ValidString(name))
	assert.LessOrEqual(t, len(name), 83)
}
