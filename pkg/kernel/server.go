package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/manthysbr/localagent/internal/core/ports"
	"github.com/manthysbr/localagent/internal/core/services"
)

const (
	defaultTraceLimit = 50
	maxTraceLimit     = 500
)

// Agent is the part of the reasoning loop the API calls.
type Agent interface {
	Run(ctx context.Context, question string, opts ...services.RunOption) (*domain.AgentResponse, error)
}

// TraceLister reads recent traces from memory.
type TraceLister interface {
	ListTraces(limit int) []domain.TraceSummary
	GetTrace(traceID domain.TraceID) (*domain.Trace, error)
}

type Server struct {
	logger *slog.Logger
	agent  Agent
	tracer TraceLister
	store  ports.TraceStore // optional, persisted audit log
	docs   []byte
}

// Ensure Server implements StrictServerInterface
var _ StrictServerInterface = (*Server)(nil)

// NewServer creates the API server. tracer and store may be nil.
func NewServer(logger *slog.Logger, agent Agent, tracer TraceLister, store ports.TraceStore) (*Server, error) {
	docs, err := json.Marshal(NewOpenAPI())
	if err != nil {
		return nil, fmt.Errorf("render openapi document: %w", err)
	}
	return &Server{
		logger: logger,
		agent:  agent,
		tracer: tracer,
		store:  store,
		docs:   docs,
	}, nil
}

// Handler returns the http.Handler for the server: the strict API routes
// behind OpenAPI request validation, with access logging.
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	strictHandler := NewStrictHandler(s, []StrictMiddlewareFunc{s.logMiddleware})
	HandlerFromMux(strictHandler, mux)

	return requestValidator(NewOpenAPI(), mux)
}

// logMiddleware logs every API operation with its latency.
func (s *Server) logMiddleware(f StrictHandlerFunc, operationID string) StrictHandlerFunc {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, request interface{}) (interface{}, error) {
		start := time.Now()
		resp, err := f(ctx, w, r, request)
		s.logger.Debug("api request",
			"operation", operationID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

func (s *Server) GetRoot(ctx context.Context, request GetRootRequestObject) (GetRootResponseObject, error) {
	return GetRoot200JSONResponse{
		Message:       "Local Coding Agent API",
		Docs:          "/docs",
		AgentEndpoint: "/agent",
		Playground:    "/agent/playground",
	}, nil
}

func (s *Server) GetHealth(ctx context.Context, request GetHealthRequestObject) (GetHealthResponseObject, error) {
	return GetHealth200JSONResponse{Status: "healthy"}, nil
}

func (s *Server) GetDocs(ctx context.Context, request GetDocsRequestObject) (GetDocsResponseObject, error) {
	return GetDocs200JSONResponse(s.docs), nil
}

// PostAgent runs one query. It blocks while another query (REPL or HTTP) is
// in flight. Model failures map to 502; the transcript is not returned.
func (s *Server) PostAgent(ctx context.Context, request PostAgentRequestObject) (PostAgentResponseObject, error) {
	if request.Body == nil || strings.TrimSpace(request.Body.Input) == "" {
		return PostAgent400JSONResponse{Error: "input is required"}, nil
	}

	resp, err := s.agent.Run(ctx, request.Body.Input)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.logger.Error("agent query failed", "error", err)
		return PostAgent502JSONResponse{Error: err.Error()}, nil
	}
	return PostAgent200JSONResponse(*resp), nil
}

// ListTraces returns recent trace summaries, from the persisted store when
// configured, else from memory.
func (s *Server) ListTraces(ctx context.Context, request ListTracesRequestObject) (ListTracesResponseObject, error) {
	limit := defaultTraceLimit
	if request.Params.Limit != nil {
		limit = *request.Params.Limit
	}
	if limit < 1 || limit > maxTraceLimit {
		return ListTraces400JSONResponse{Error: fmt.Sprintf("limit must be within [1, %d], got %d", maxTraceLimit, limit)}, nil
	}

	traces := []domain.TraceSummary{}
	switch {
	case s.store != nil:
		stored, err := s.store.ListTraces(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("list traces: %w", err)
		}
		traces = stored
	case s.tracer != nil:
		traces = s.tracer.ListTraces(limit)
	}
	return ListTraces200JSONResponse{Traces: traces, Count: len(traces)}, nil
}

// GetTrace returns one trace with its spans. Traces the in-memory ring has
// evicted are read back from the persisted store when one is configured.
func (s *Server) GetTrace(ctx context.Context, request GetTraceRequestObject) (GetTraceResponseObject, error) {
	id := domain.TraceID(request.ID)
	if s.tracer != nil {
		if trace, err := s.tracer.GetTrace(id); err == nil {
			return GetTrace200JSONResponse(*trace), nil
		}
	}
	if s.store == nil {
		return GetTrace404JSONResponse{Error: fmt.Sprintf("%v: %s", domain.ErrTraceNotFound, id)}, nil
	}

	trace, err := s.store.GetTrace(ctx, id)
	if errors.Is(err, domain.ErrTraceNotFound) {
		return GetTrace404JSONResponse{Error: err.Error()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load trace: %w", err)
	}
	return GetTrace200JSONResponse(*trace), nil
}
