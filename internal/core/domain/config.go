package domain

import (
	"fmt"
	"time"
)

// AppConfig is the main application configuration
type AppConfig struct {
	LLM     LLMConfig     `toml:"llm" yaml:"llm" json:"llm"`
	Agent   AgentConfig   `toml:"agent" yaml:"agent" json:"agent"`
	Search  SearchConfig  `toml:"search" yaml:"search" json:"search"`
	Sandbox SandboxConfig `toml:"sandbox" yaml:"sandbox" json:"sandbox"`
	Files   FilesConfig   `toml:"files" yaml:"files" json:"files"`
	HTTP    HTTPConfig    `toml:"http" yaml:"http" json:"http"`
	Trace   TraceConfig   `toml:"trace" yaml:"trace" json:"trace"`
	Log     LogConfig     `toml:"log" yaml:"log" json:"log"`
}

// LLMConfig configures the model service
type LLMConfig struct {
	Provider    string   `toml:"provider" yaml:"provider" json:"provider"` // "ollama" or "openai"
	BaseURL     string   `toml:"base_url" yaml:"base_url" json:"base_url"`
	APIKey      string   `toml:"api_key" yaml:"api_key" json:"api_key,omitempty"`
	Model       string   `toml:"model" yaml:"model" json:"model"`
	Temperature float64  `toml:"temperature" yaml:"temperature" json:"temperature"`
	Timeout     Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
}

// AgentConfig bounds the reasoning loop
type AgentConfig struct {
	MaxIterations  int  `toml:"max_iterations" yaml:"max_iterations" json:"max_iterations"`
	MaxParseErrors int  `toml:"max_parse_errors" yaml:"max_parse_errors" json:"max_parse_errors"`
	Verbose        bool `toml:"verbose" yaml:"verbose" json:"verbose"`
}

// SearchConfig configures the web search back end
type SearchConfig struct {
	Engine     string   `toml:"engine" yaml:"engine" json:"engine"` // "duckduckgo" or "google"
	Endpoint   string   `toml:"endpoint" yaml:"endpoint" json:"endpoint"`
	MaxResults int      `toml:"max_results" yaml:"max_results" json:"max_results"`
	Timeout    Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
	RatePerSec float64  `toml:"rate_per_sec" yaml:"rate_per_sec" json:"rate_per_sec"`
	UserAgent  string   `toml:"user_agent" yaml:"user_agent" json:"user_agent"`
}

// SandboxConfig configures code execution
type SandboxConfig struct {
	Mode     string   `toml:"mode" yaml:"mode" json:"mode"` // "docker" or "local"
	Image    string   `toml:"image" yaml:"image" json:"image"`
	Python   string   `toml:"python" yaml:"python" json:"python"`
	Timeout  Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
	MemoryMB int64    `toml:"memory_mb" yaml:"memory_mb" json:"memory_mb"`
	CPUs     float64  `toml:"cpus" yaml:"cpus" json:"cpus"`
}

// FilesConfig configures the file tool. An empty Root means paths are used
// as given (trusted local single-user operation).
type FilesConfig struct {
	Root string `toml:"root" yaml:"root" json:"root"`
}

// HTTPConfig configures the HTTP API. An empty Addr disables it.
type HTTPConfig struct {
	Addr           string   `toml:"addr" yaml:"addr" json:"addr"`
	AllowedOrigins []string `toml:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
}

// TraceConfig configures the optional DuckDB trace sink. An empty DBPath disables it.
type TraceConfig struct {
	DBPath string `toml:"db_path" yaml:"db_path" json:"db_path"`
}

// LogConfig configures slog
type LogConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"` // "json" or "text"
}

// DefaultConfig returns safe defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		LLM: LLMConfig{
			Provider:    "ollama",
			BaseURL:     "http://localhost:11434",
			Model:       "llama3:8b",
			Temperature: 0.7,
			Timeout:     Duration(120 * time.Second),
		},
		Agent: AgentConfig{
			MaxIterations:  15,
			MaxParseErrors: 3,
		},
		Search: SearchConfig{
			Engine:     "duckduckgo",
			MaxResults: 5,
			Timeout:    Duration(10 * time.Second),
			RatePerSec: 1,
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Sandbox: SandboxConfig{
			Mode:     "docker",
			Image:    "python:3.12-alpine",
			Python:   "python3",
			Timeout:  Duration(30 * time.Second),
			MemoryMB: 256,
			CPUs:     1,
		},
		HTTP: HTTPConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks cross-field constraints
func (c *AppConfig) Validate() error {
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("llm.provider must be \"ollama\" or \"openai\", got %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2], got %v", c.LLM.Temperature)
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive")
	}
	if c.Agent.MaxParseErrors <= 0 {
		return fmt.Errorf("agent.max_parse_errors must be positive")
	}
	switch c.Search.Engine {
	case "duckduckgo", "google":
	default:
		return fmt.Errorf("search.engine must be \"duckduckgo\" or \"google\", got %q", c.Search.Engine)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive")
	}
	switch c.Sandbox.Mode {
	case "docker", "local":
	default:
		return fmt.Errorf("sandbox.mode must be \"docker\" or \"local\", got %q", c.Sandbox.Mode)
	}
	if c.Sandbox.Timeout.Std() <= 0 {
		return fmt.Errorf("sandbox.timeout must be positive")
	}
	return nil
}

// Duration is a time.Duration that decodes from strings like "30s" in
// TOML, YAML and JSON config files.
type Duration time.Duration

// Std converts to time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}
