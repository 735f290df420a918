package domain

import (
	"context"
	"time"
)

// LLMProvider defines the interface for text-completion services
type LLMProvider interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ExecResult is the captured outcome of running code in a sandbox.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// ModelInfo describes one model installed in the local model service.
type ModelInfo struct {
	Name              string `json:"name"`
	Family            string `json:"family,omitempty"`
	ParameterSize     string `json:"parameter_size,omitempty"`
	QuantizationLevel string `json:"quantization_level,omitempty"`
}
