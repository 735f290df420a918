package kernel

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
)

const apiVersion = "0.1.0"

func jsonResponse(description string, schema *openapi3.Schema) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(description).WithJSONSchema(schema)}
}

func errorSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().WithProperty("error", openapi3.NewStringSchema())
	s.Required = []string{"error"}
	return s
}

// NewOpenAPI builds the API document served at /docs and used to validate requests.
func NewOpenAPI() *openapi3.T {
	rootSchema := openapi3.NewObjectSchema().
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("docs", openapi3.NewStringSchema()).
		WithProperty("agent_endpoint", openapi3.NewStringSchema()).
		WithProperty("playground", openapi3.NewStringSchema())

	healthSchema := openapi3.NewObjectSchema().
		WithProperty("status", openapi3.NewStringSchema().WithEnum("healthy"))

	agentRequest := openapi3.NewObjectSchema().
		WithProperty("input", openapi3.NewStringSchema().WithMinLength(1))
	agentRequest.Required = []string{"input"}

	step := openapi3.NewObjectSchema().
		WithProperty("thought", openapi3.NewStringSchema()).
		WithProperty("action", openapi3.NewStringSchema()).
		WithProperty("action_input", openapi3.NewStringSchema()).
		WithProperty("observation", openapi3.NewStringSchema()).
		WithProperty("is_final_answer", openapi3.NewBoolSchema()).
		WithProperty("final_answer", openapi3.NewStringSchema()).
		WithProperty("log", openapi3.NewStringSchema())

	agentResponse := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewStringSchema()).
		WithProperty("output", openapi3.NewStringSchema()).
		WithProperty("steps", openapi3.NewArraySchema().WithItems(step)).
		WithProperty("iterations", openapi3.NewIntegerSchema()).
		WithProperty("stop_reason", openapi3.NewStringSchema().WithEnum("final_answer", "max_iterations", "max_parse_errors"))

	traceSummary := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewStringSchema()).
		WithProperty("name", openapi3.NewStringSchema()).
		WithProperty("status", openapi3.NewStringSchema()).
		WithProperty("start_time", openapi3.NewDateTimeSchema()).
		WithProperty("duration_ms", openapi3.NewInt64Schema()).
		WithProperty("span_count", openapi3.NewIntegerSchema())
	traceList := openapi3.NewObjectSchema().
		WithProperty("traces", openapi3.NewArraySchema().WithItems(traceSummary)).
		WithProperty("count", openapi3.NewIntegerSchema())

	limitParam := openapi3.NewQueryParameter("limit").
		WithSchema(openapi3.NewIntegerSchema().WithMin(1).WithMax(500))

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Local Coding Agent API",
			Description: "ReAct agent backed by a local model with web search, Python execution and file tools.",
			Version:     apiVersion,
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/", &openapi3.PathItem{
				Get: &openapi3.Operation{
					OperationID: "getRoot",
					Summary:     "API descriptor",
					Responses:   openapi3.NewResponses(openapi3.WithStatus(200, jsonResponse("API descriptor", rootSchema))),
				},
			}),
			openapi3.WithPath("/health", &openapi3.PathItem{
				Get: &openapi3.Operation{
					OperationID: "getHealth",
					Summary:     "Liveness probe",
					Responses:   openapi3.NewResponses(openapi3.WithStatus(200, jsonResponse("Service is up", healthSchema))),
				},
			}),
			openapi3.WithPath("/docs", &openapi3.PathItem{
				Get: &openapi3.Operation{
					OperationID: "getDocs",
					Summary:     "This document",
					Responses:   openapi3.NewResponses(openapi3.WithStatus(200, jsonResponse("OpenAPI document", openapi3.NewObjectSchema()))),
				},
			}),
			openapi3.WithPath("/agent", &openapi3.PathItem{
				Post: &openapi3.Operation{
					OperationID: "postAgent",
					Summary:     "Run one query through the agent",
					RequestBody: &openapi3.RequestBodyRef{
						Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(agentRequest),
					},
					Responses: openapi3.NewResponses(
						openapi3.WithStatus(200, jsonResponse("Agent answer and transcript", agentResponse)),
						openapi3.WithStatus(400, jsonResponse("Invalid request", errorSchema())),
						openapi3.WithStatus(502, jsonResponse("Model service failure", errorSchema())),
					),
				},
			}),
			openapi3.WithPath("/v1/traces", &openapi3.PathItem{
				Get: &openapi3.Operation{
					OperationID: "listTraces",
					Summary:     "Recent query traces",
					Parameters:  openapi3.Parameters{{Value: limitParam}},
					Responses:   openapi3.NewResponses(openapi3.WithStatus(200, jsonResponse("Trace summaries", traceList))),
				},
			}),
			openapi3.WithPath("/v1/traces/{id}", &openapi3.PathItem{
				Get: &openapi3.Operation{
					OperationID: "getTrace",
					Summary:     "One trace with all spans",
					Parameters: openapi3.Parameters{{
						Value: openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()),
					}},
					Responses: openapi3.NewResponses(
						openapi3.WithStatus(200, jsonResponse("Trace", openapi3.NewObjectSchema())),
						openapi3.WithStatus(404, jsonResponse("Unknown trace", errorSchema())),
					),
				},
			}),
		),
	}
}

// requestValidator rejects requests that do not match the OpenAPI document.
// Requests the document has no operation for are passed through to the mux.
func requestValidator(doc *openapi3.T, next http.Handler) (http.Handler, error) {
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, params, err := router.FindRoute(r)
		if err != nil {
			// unknown path or method: let the mux answer 404/405
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
			Options:    &openapi3filter.Options{MultiError: false},
		}
		if err := openapi3filter.ValidateRequest(context.WithoutCancel(r.Context()), input); err != nil {
			writeError(w, http.StatusBadRequest, validationMessage(err))
			return
		}
		next.ServeHTTP(w, r)
	}), nil
}

// validationMessage trims kin-openapi's verbose errors down to the reason.
func validationMessage(err error) error {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("invalid request: %s", reqErr.Error())
	}
	return fmt.Errorf("invalid request: %w", err)
}
