package domain

import "github.com/google/uuid"

// QueryID identifies one user query (one run of the reasoning loop).
type QueryID string

// NewQueryID returns a fresh random query ID.
func NewQueryID() QueryID {
	return QueryID(uuid.New().String())
}

// ReActStep represents one Thought/Action/Observation cycle of the reasoning chain
type ReActStep struct {
	Thought       string `json:"thought,omitempty"`
	Action        string `json:"action,omitempty"`       // Tool name as emitted by the model
	ActionInput   string `json:"action_input,omitempty"` // Raw tool input text
	Observation   string `json:"observation,omitempty"`  // Tool result or parse error
	IsFinalAnswer bool   `json:"is_final_answer,omitempty"`
	FinalAnswer   string `json:"final_answer,omitempty"`
	Log           string `json:"log,omitempty"` // Raw model completion for this step
}

// StopReason explains why the loop returned.
type StopReason string

const (
	StopFinalAnswer    StopReason = "final_answer"
	StopMaxIterations  StopReason = "max_iterations"
	StopMaxParseErrors StopReason = "max_parse_errors"
)

// AgentResponse wraps the agent's answer with the transcript that produced it
type AgentResponse struct {
	ID         QueryID     `json:"id"`
	Response   string      `json:"output"`
	Steps      []ReActStep `json:"steps"`
	Iterations int         `json:"iterations"`
	StopReason StopReason  `json:"stop_reason"`
}

// ParseKind tags the result of parsing one model completion.
type ParseKind int

const (
	ParseUnparsable ParseKind = iota
	ParseAction
	ParseFinalAnswer
)

func (k ParseKind) String() string {
	switch k {
	case ParseAction:
		return "action"
	case ParseFinalAnswer:
		return "final_answer"
	default:
		return "unparsable"
	}
}

// ParseResult is the tagged outcome of parsing a completion.
// Tool/Input are set for ParseAction, Answer for ParseFinalAnswer,
// Reason for ParseUnparsable.
type ParseResult struct {
	Kind    ParseKind
	Thought string
	Tool    string
	Input   string
	Answer  string
	Reason  string
}
