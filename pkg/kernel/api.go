package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/oapi-codegen/runtime"
	strictnethttp "github.com/oapi-codegen/runtime/strictmiddleware/nethttp"

	"github.com/manthysbr/localagent/internal/core/domain"
)

// RootResponse describes the API.
type RootResponse struct {
	Message       string `json:"message"`
	Docs          string `json:"docs"`
	AgentEndpoint string `json:"agent_endpoint"`
	Playground    string `json:"playground"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// AgentRequest is the body of POST /agent.
type AgentRequest struct {
	Input string `json:"input"`
}

// ErrorResponse is returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TraceList is the body of GET /v1/traces.
type TraceList struct {
	Traces []domain.TraceSummary `json:"traces"`
	Count  int                   `json:"count"`
}

type GetRootRequestObject struct{}

type GetRootResponseObject interface {
	VisitGetRootResponse(w http.ResponseWriter) error
}

type GetRoot200JSONResponse RootResponse

func (response GetRoot200JSONResponse) VisitGetRootResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, response)
}

type GetHealthRequestObject struct{}

type GetHealthResponseObject interface {
	VisitGetHealthResponse(w http.ResponseWriter) error
}

type GetHealth200JSONResponse HealthResponse

func (response GetHealth200JSONResponse) VisitGetHealthResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, response)
}

type GetDocsRequestObject struct{}

type GetDocsResponseObject interface {
	VisitGetDocsResponse(w http.ResponseWriter) error
}

// GetDocs200JSONResponse carries the pre-rendered OpenAPI document.
type GetDocs200JSONResponse json.RawMessage

func (response GetDocs200JSONResponse) VisitGetDocsResponse(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(response)
	return err
}

type PostAgentRequestObject struct {
	Body *AgentRequest
}

type PostAgentResponseObject interface {
	VisitPostAgentResponse(w http.ResponseWriter) error
}

type PostAgent200JSONResponse domain.AgentResponse

func (response PostAgent200JSONResponse) VisitPostAgentResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, response)
}

type PostAgent400JSONResponse ErrorResponse

func (response PostAgent400JSONResponse) VisitPostAgentResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusBadRequest, response)
}

type PostAgent502JSONResponse ErrorResponse

func (response PostAgent502JSONResponse) VisitPostAgentResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusBadGateway, response)
}

// ListTracesParams defines parameters for ListTraces.
type ListTracesParams struct {
	// Limit caps the number of summaries, 1..500. Defaults to 50.
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

type ListTracesRequestObject struct {
	Params ListTracesParams
}

type ListTracesResponseObject interface {
	VisitListTracesResponse(w http.ResponseWriter) error
}

type ListTraces400JSONResponse ErrorResponse

func (response ListTraces400JSONResponse) VisitListTracesResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusBadRequest, response)
}

type ListTraces200JSONResponse TraceList

func (response ListTraces200JSONResponse) VisitListTracesResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, response)
}

type GetTraceRequestObject struct {
	ID string
}

type GetTrace400JSONResponse ErrorResponse

func (response GetTrace400JSONResponse) VisitGetTraceResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusBadRequest, response)
}

type GetTraceResponseObject interface {
	VisitGetTraceResponse(w http.ResponseWriter) error
}

type GetTrace200JSONResponse domain.Trace

func (response GetTrace200JSONResponse) VisitGetTraceResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, response)
}

type GetTrace404JSONResponse ErrorResponse

func (response GetTrace404JSONResponse) VisitGetTraceResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusNotFound, response)
}

// StrictServerInterface represents all server handlers.
type StrictServerInterface interface {
	// API descriptor
	// (GET /)
	GetRoot(ctx context.Context, request GetRootRequestObject) (GetRootResponseObject, error)
	// Liveness probe
	// (GET /health)
	GetHealth(ctx context.Context, request GetHealthRequestObject) (GetHealthResponseObject, error)
	// OpenAPI document
	// (GET /docs)
	GetDocs(ctx context.Context, request GetDocsRequestObject) (GetDocsResponseObject, error)
	// Run one query through the agent
	// (POST /agent)
	PostAgent(ctx context.Context, request PostAgentRequestObject) (PostAgentResponseObject, error)
	// Recent query traces
	// (GET /v1/traces)
	ListTraces(ctx context.Context, request ListTracesRequestObject) (ListTracesResponseObject, error)
	// One trace with all spans
	// (GET /v1/traces/{id})
	GetTrace(ctx context.Context, request GetTraceRequestObject) (GetTraceResponseObject, error)
}

type StrictHandlerFunc = strictnethttp.StrictHTTPHandlerFunc
type StrictMiddlewareFunc = strictnethttp.StrictHTTPMiddlewareFunc

// ServerInterface is the plain net/http view of the API.
type ServerInterface interface {
	GetRoot(w http.ResponseWriter, r *http.Request)
	GetHealth(w http.ResponseWriter, r *http.Request)
	GetDocs(w http.ResponseWriter, r *http.Request)
	PostAgent(w http.ResponseWriter, r *http.Request)
	ListTraces(w http.ResponseWriter, r *http.Request)
	GetTrace(w http.ResponseWriter, r *http.Request)
}

// HandlerFromMux registers the API routes on m.
func HandlerFromMux(si ServerInterface, m *http.ServeMux) http.Handler {
	m.HandleFunc("GET /{$}", si.GetRoot)
	m.HandleFunc("GET /health", si.GetHealth)
	m.HandleFunc("GET /docs", si.GetDocs)
	m.HandleFunc("POST /agent", si.PostAgent)
	m.HandleFunc("GET /v1/traces", si.ListTraces)
	m.HandleFunc("GET /v1/traces/{id}", si.GetTrace)
	return m
}

// NewStrictHandler adapts a StrictServerInterface to net/http.
func NewStrictHandler(ssi StrictServerInterface, middlewares []StrictMiddlewareFunc) ServerInterface {
	return &strictHandler{ssi: ssi, middlewares: middlewares}
}

type strictHandler struct {
	ssi         StrictServerInterface
	middlewares []StrictMiddlewareFunc
}

func (sh *strictHandler) serve(w http.ResponseWriter, r *http.Request, operationID string, request interface{}, call StrictHandlerFunc, visit func(response interface{}) (bool, error)) {
	handler := call
	for _, middleware := range sh.middlewares {
		handler = middleware(handler, operationID)
	}

	response, err := handler(r.Context(), w, r, request)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	ok, err := visit(response)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok && response != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("unexpected response type: %T", response))
	}
}

func (sh *strictHandler) GetRoot(w http.ResponseWriter, r *http.Request) {
	sh.serve(w, r, "GetRoot", GetRootRequestObject{},
		func(ctx context.Context, w http.ResponseWriter, r *http.Request, request interface{}) (interface{}, error) {
			return sh.ssi.GetRoot(ctx, request.(GetRootRequestObject))
		},
		func(response interface{}) (bool, error) {
			if v, ok := response.(GetRootResponseObject); ok {
				return true, v.VisitGetRootResponse(w)
			}
			return false, nil
		})
}

func (sh *strictHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	sh.serve(w, r, "GetHealth", GetHealthRequestObject{},
		func(ctx context.Context, w http.ResponseWriter, r *http.Request, request interface{}) (interface{}, error) {
			return sh.ssi.GetHealth(ctx, request.(GetHealthRequestObject))
		},
		func(response interface{}) (bool, error) {
			if v, ok := response.(GetHealthResponseObject); ok {
				return true, v.VisitGetHealthResponse(w)
			}
			return false, nil
		})
}

func (sh *strictHandler) GetDocs(w http.ResponseWriter, r *http.Request) {
	sh.serve(w, r, "GetDocs", GetDocsRequestObject{},
		func(ctx context.Context, w http.ResponseWriter, r *http.Request, request interface{}) (interface{}, error) {
			return sh.ssi.GetDocs(ctx, request.(GetDocsRequestObject))
		},
		func(response interface{}) (bool, error) {
			if v, ok := response.(GetDocsResponseObject); ok {
				return true, v.VisitGetDocsResponse(w)
			}
			return false, nil
		})
}

func (sh *strictHandler) PostAgent(w http.ResponseWriter, r *http.Request) {
	var body AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("can't decode JSON body: %w", err))
		return
	}

	sh.serve(w, r, "PostAgent", PostAgentRequestObject{Body: &body},
		func(ctx context.Context, w http.ResponseWriter, r *http.Request, request interface{}) (interface{}, error) {
			return sh.ssi.PostAgent(ctx, request.(PostAgentRequestObject))
		},
		func(response interface{}) (bool, error) {
			if v, ok := response.(PostAgentResponseObject); ok {
				return true, v.VisitPostAgentResponse(w)
			}
			return false, nil
		})
}

func (sh *strictHandler) ListTraces(w http.ResponseWriter, r *http.Request) {
	var params ListTracesParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid format for parameter limit: %w", err))
		return
	}

	sh.serve(w, r, "ListTraces", ListTracesRequestObject{Params: params},
		func(ctx context.Context, w http.ResponseWriter, r *http.Request, request interface{}) (interface{}, error) {
			return sh.ssi.ListTraces(ctx, request.(ListTracesRequestObject))
		},
		func(response interface{}) (bool, error) {
			if v, ok := response.(ListTracesResponseObject); ok {
				return true, v.VisitListTracesResponse(w)
			}
			return false, nil
		})
}

func (sh *strictHandler) GetTrace(w http.ResponseWriter, r *http.Request) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", r.PathValue("id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid format for parameter id: %w", err))
		return
	}

	sh.serve(w, r, "GetTrace", GetTraceRequestObject{ID: id},
		func(ctx context.Context, w http.ResponseWriter, r *http.Request, request interface{}) (interface{}, error) {
			return sh.ssi.GetTrace(ctx, request.(GetTraceRequestObject))
		},
		func(response interface{}) (bool, error) {
			if v, ok := response.(GetTraceResponseObject); ok {
				return true, v.VisitGetTraceResponse(w)
			}
			return false, nil
		})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	_ = writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
