package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/manthysbr/localagent/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// LookupFunc reads one environment variable. os.LookupEnv in production.
type LookupFunc func(key string) (string, bool)

// Override mutates a loaded config. Command-line flags are applied this way
// so they survive hot reloads.
type Override func(cfg *domain.AppConfig)

// Load builds the configuration: defaults, then the optional file at path,
// then environment variables, then overrides. The result is validated.
func Load(path string, lookup LookupFunc, overrides ...Override) (*domain.AppConfig, error) {
	cfg := domain.DefaultConfig()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over cfg. The format follows the file extension.
func loadFile(path string, cfg *domain.AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse toml config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("parse json config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (use .toml, .yaml or .json)", filepath.Ext(path))
	}
	return nil
}

func applyEnv(cfg *domain.AppConfig, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("LLM_PROVIDER", &cfg.LLM.Provider)
	str("OLLAMA_HOST", &cfg.LLM.BaseURL)
	str("OLLAMA_BASE_URL", &cfg.LLM.BaseURL)
	str("OLLAMA_MODEL", &cfg.LLM.Model)
	str("OPENAI_API_KEY", &cfg.LLM.APIKey)
	str("AGENT_SANDBOX", &cfg.Sandbox.Mode)
	str("AGENT_TRACE_DB", &cfg.Trace.DBPath)
	str("AGENT_LOG_LEVEL", &cfg.Log.Level)
	str("AGENT_FILES_ROOT", &cfg.Files.Root)

	if v, ok := lookup("OLLAMA_TEMPERATURE"); ok && strings.TrimSpace(v) != "" {
		t, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("OLLAMA_TEMPERATURE: %w", err)
		}
		cfg.LLM.Temperature = t
	}
	// set-but-empty disables the HTTP API
	if v, ok := lookup("AGENT_HTTP_ADDR"); ok {
		cfg.HTTP.Addr = strings.TrimSpace(v)
	}
	if v, ok := lookup("AGENT_VERBOSE"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("AGENT_VERBOSE: %w", err)
		}
		cfg.Agent.Verbose = b
	}
	return nil
}
